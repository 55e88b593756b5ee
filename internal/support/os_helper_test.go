package support

import (
	"reflect"
	"testing"
	"time"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("BLOCKWATCH_TEST_ENV", "value")
	if got := GetEnv("BLOCKWATCH_TEST_ENV", "fallback"); got != "value" {
		t.Fatalf("GetEnv returned %s, want value", got)
	}

	if got := GetEnv("BLOCKWATCH_TEST_ENV_MISSING", "fallback"); got != "fallback" {
		t.Fatalf("GetEnv returned %s, want fallback", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("BLOCKWATCH_TEST_INT", "42")
	if got := GetEnvInt("BLOCKWATCH_TEST_INT", 7); got != 42 {
		t.Fatalf("GetEnvInt returned %d, want 42", got)
	}

	t.Setenv("BLOCKWATCH_TEST_INT", "forty-two")
	if got := GetEnvInt("BLOCKWATCH_TEST_INT", 7); got != 7 {
		t.Fatalf("GetEnvInt with invalid value returned %d, want 7", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("BLOCKWATCH_TEST_BOOL", " true ")
	if !GetEnvBool("BLOCKWATCH_TEST_BOOL", false) {
		t.Fatal("GetEnvBool returned false, want true")
	}

	t.Setenv("BLOCKWATCH_TEST_BOOL", "maybe")
	if !GetEnvBool("BLOCKWATCH_TEST_BOOL", true) {
		t.Fatal("GetEnvBool with invalid value should return fallback")
	}
}

func TestGetEnvDuration(t *testing.T) {
	cases := []struct {
		value string
		want  time.Duration
	}{
		{"90s", 90 * time.Second},
		{"2h", 2 * time.Hour},
		{"30", 30 * time.Second},
		{"-5m", time.Minute},
		{"soon", time.Minute},
	}

	for _, tc := range cases {
		t.Setenv("BLOCKWATCH_TEST_DURATION", tc.value)
		if got := GetEnvDuration("BLOCKWATCH_TEST_DURATION", time.Minute); got != tc.want {
			t.Errorf("GetEnvDuration(%q) = %v, want %v", tc.value, got, tc.want)
		}
	}
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("BLOCKWATCH_TEST_LIST", "kafka-1:9092, ,kafka-2:9092,")
	want := []string{"kafka-1:9092", "kafka-2:9092"}
	if got := GetEnvList("BLOCKWATCH_TEST_LIST", nil); !reflect.DeepEqual(got, want) {
		t.Fatalf("GetEnvList returned %v, want %v", got, want)
	}

	fallback := []string{"localhost:9092"}
	if got := GetEnvList("BLOCKWATCH_TEST_LIST_MISSING", fallback); !reflect.DeepEqual(got, fallback) {
		t.Fatalf("GetEnvList returned %v, want %v", got, fallback)
	}
}
