package match

import (
	"strings"
	"unicode"
)

// RawListing is the slice of an extracted listing record that the normalizer
// consumes. Rooms and size arrive as free text ("3,5 rum", "78 kvm") and the
// feature tags are whatever the portal printed.
type RawListing struct {
	Rooms    string   `json:"rooms"`
	Size     string   `json:"size"`
	Features []string `json:"features"`
}

// Features maps feature id to a typed value: float64 for numeric features,
// bool for amenity flags. Keys the normalizer owns are always present.
type Features map[string]interface{}

// Normalize converts a raw listing into the typed feature map used by the
// scorer. Pure function: unparseable numeric fields become 0 and an empty tag
// list yields all-false amenities, never an error.
func Normalize(listing RawListing) Features {
	features := make(Features, len(amenityKeywords)+2)

	features["rooms"] = float64(leadingInt(listing.Rooms))
	features["size"] = float64(leadingInt(listing.Size))

	lowered := make([]string, 0, len(listing.Features))
	for _, tag := range listing.Features {
		lowered = append(lowered, strings.ToLower(tag))
	}

	for id, keywords := range amenityKeywords {
		features[id] = anyTagContains(lowered, keywords)
	}

	return features
}

// leadingInt parses the integer prefix of a free-text numeric field.
// "3,5 rum" → 3, "78 kvm" → 78, "ett rum" → 0.
func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	n := 0
	seen := false
	for _, r := range s {
		if !unicode.IsDigit(r) {
			break
		}
		n = n*10 + int(r-'0')
		seen = true
	}
	if !seen {
		return 0
	}
	return n
}

func anyTagContains(loweredTags []string, keywords []string) bool {
	for _, tag := range loweredTags {
		for _, kw := range keywords {
			if strings.Contains(tag, kw) {
				return true
			}
		}
	}
	return false
}
