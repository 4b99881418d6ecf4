package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// OrderItem is the fixed enumeration of order categories: exam combination
// crossed with academic track, plus None for records without a category.
type OrderItem string

const (
	ItemNone               OrderItem = "None"
	ItemJambArt            OrderItem = "Jamb Art"
	ItemJambScience        OrderItem = "Jamb Science"
	ItemJambCommercial     OrderItem = "Jamb Commercial"
	ItemWaecArt            OrderItem = "Waec Art"
	ItemWaecScience        OrderItem = "Waec Science"
	ItemWaecCommercial     OrderItem = "Waec Commercial"
	ItemJambWaecArt        OrderItem = "Jamb & Waec Art"
	ItemJambWaecScience    OrderItem = "Jamb & Waec Science"
	ItemJambWaecCommercial OrderItem = "Jamb & Waec Commercial"
)

type exam int

const (
	examJamb exam = iota
	examWaec
	examJambWaec
)

type track int

const (
	trackArt track = iota
	trackScience
	trackCommercial
)

// amountToken matches the first comma-grouped integer, e.g. "15,000".
var amountToken = regexp.MustCompile(`\d{1,3}(?:,\d{3})*`)

// ParseCategory interprets the free-text exam/track field the legacy feeds
// use ("jamb and waec science @ 15,000") and returns the order item plus the
// embedded amount.
//
// Grammar: exam precedence is jamb+waec over jamb over waec; track is "art"
// or "science", anything else falls back to commercial; the amount is the
// first comma-grouped number after an "@" delimiter when one is present,
// otherwise the first in the whole string, thousands separators stripped.
// An empty field yields ItemNone with amount 0.
func ParseCategory(text string) (OrderItem, int64) {
	if strings.TrimSpace(text) == "" {
		return ItemNone, 0
	}
	lowered := strings.ToLower(text)
	return itemFor(examFor(lowered), trackFor(lowered)), extractAmount(lowered)
}

// ItemFromProductName derives the order item from a structured product name.
// Same exam/track grammar as ParseCategory, without amount extraction.
func ItemFromProductName(name string) OrderItem {
	lowered := strings.ToLower(name)
	return itemFor(examFor(lowered), trackFor(lowered))
}

// NormalizeState canonicalizes the one state the feeds spell inconsistently.
func NormalizeState(state string) string {
	if strings.Contains(strings.ToLower(state), "cross") {
		return "Cross River"
	}
	return state
}

func examFor(text string) exam {
	hasJamb := strings.Contains(text, "jamb")
	hasWaec := strings.Contains(text, "waec")
	switch {
	case hasJamb && hasWaec:
		return examJambWaec
	case hasJamb:
		return examJamb
	default:
		return examWaec
	}
}

func trackFor(text string) track {
	switch {
	case strings.Contains(text, "science"):
		return trackScience
	case strings.Contains(text, "art"):
		return trackArt
	default:
		return trackCommercial
	}
}

func itemFor(e exam, t track) OrderItem {
	switch e {
	case examJambWaec:
		switch t {
		case trackScience:
			return ItemJambWaecScience
		case trackArt:
			return ItemJambWaecArt
		default:
			return ItemJambWaecCommercial
		}
	case examJamb:
		switch t {
		case trackScience:
			return ItemJambScience
		case trackArt:
			return ItemJambArt
		default:
			return ItemJambCommercial
		}
	default:
		switch t {
		case trackScience:
			return ItemWaecScience
		case trackArt:
			return ItemWaecArt
		default:
			return ItemWaecCommercial
		}
	}
}

func extractAmount(text string) int64 {
	candidate := text
	if at := strings.IndexByte(text, '@'); at >= 0 {
		candidate = text[at+1:]
	}
	match := amountToken.FindString(candidate)
	if match == "" {
		match = amountToken.FindString(text)
	}
	if match == "" {
		return 0
	}
	amount, err := strconv.ParseInt(strings.ReplaceAll(match, ",", ""), 10, 64)
	if err != nil {
		return 0
	}
	return amount
}
