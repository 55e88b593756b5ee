package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventTimeLayout renders UTC as +00:00 and omits zero microseconds.
const EventTimeLayout = "2006-01-02T15:04:05.999999-07:00"

// EventMessage is published downstream for every newly created record.
type EventMessage struct {
	Record BlocklistRecord
	Source string
}

type eventPayload struct {
	AddressID string  `json:"address_id"`
	IPAddress string  `json:"ip_address"`
	FeedName  string  `json:"feed_name"`
	FeedURL   string  `json:"feed_url"`
	FirstSeen *string `json:"first_seen"`
	LastSeen  string  `json:"last_seen"`
	ASN       *int    `json:"asn"`
	ASNText   *string `json:"asn_text"`
	Source    string  `json:"source"`
}

func EncodeEventMessage(msg EventMessage) ([]byte, error) {
	r := msg.Record
	payload := eventPayload{
		AddressID: r.AddressID.String(),
		IPAddress: r.IPAddress.String(),
		FeedName:  r.FeedName.String(),
		FeedURL:   r.FeedURL,
		LastSeen:  r.LastSeen.UTC().Format(EventTimeLayout),
		ASN:       r.ASN,
		ASNText:   r.ASNText,
		Source:    msg.Source,
	}
	if r.FirstSeen != nil {
		firstSeen := r.FirstSeen.UTC().Format(EventTimeLayout)
		payload.FirstSeen = &firstSeen
	}
	return json.Marshal(payload)
}

func DecodeEventMessage(data []byte) (EventMessage, error) {
	var payload eventPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return EventMessage{}, fmt.Errorf("decode event payload: %w", err)
	}

	id, err := uuid.Parse(payload.AddressID)
	if err != nil {
		return EventMessage{}, fmt.Errorf("parse address_id: %w", err)
	}
	address, err := ParseAddress(payload.IPAddress)
	if err != nil {
		return EventMessage{}, fmt.Errorf("parse ip_address: %w", err)
	}
	feed, err := ParseFeedName(payload.FeedName)
	if err != nil {
		return EventMessage{}, err
	}
	lastSeen, err := time.Parse(EventTimeLayout, payload.LastSeen)
	if err != nil {
		return EventMessage{}, fmt.Errorf("parse last_seen: %w", err)
	}

	record := BlocklistRecord{
		AddressID: id,
		IPAddress: address,
		FeedName:  feed,
		FeedURL:   payload.FeedURL,
		LastSeen:  lastSeen.UTC(),
		ASN:       payload.ASN,
		ASNText:   payload.ASNText,
	}
	if payload.FirstSeen != nil {
		firstSeen, err := time.Parse(EventTimeLayout, *payload.FirstSeen)
		if err != nil {
			return EventMessage{}, fmt.Errorf("parse first_seen: %w", err)
		}
		firstSeen = firstSeen.UTC()
		record.FirstSeen = &firstSeen
	}

	return EventMessage{Record: record, Source: payload.Source}, nil
}
