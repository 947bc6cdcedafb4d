package ws

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// For any chat message, encoding and decoding preserves the message body,
// session and module identity, and the type tag.
func TestCodecRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("chat messages survive a codec round trip", prop.ForAll(
		func(body, sessionID, moduleID string) bool {
			if body == "" {
				body = "x"
			}
			msg := &Message{
				Type:      MessageTypeChat,
				Message:   body,
				SessionID: sessionID,
				ModuleID:  moduleID,
				Timestamp: time.Now().UnixMilli(),
			}

			parsed, err := DecodeMessage(EncodeMessage(msg))
			if err != nil {
				return false
			}
			return parsed.Type == MessageTypeChat &&
				parsed.Message == body &&
				parsed.SessionID == sessionID &&
				parsed.ModuleID == moduleID
		},
		gen.AnyString(),
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.Property("status messages survive a codec round trip", prop.ForAll(
		func(moduleID, status string) bool {
			if moduleID == "" || status == "" {
				return true
			}
			msg := &Message{
				Type:      MessageTypeStatus,
				ModuleID:  moduleID,
				Status:    status,
				Timestamp: time.Now().UnixMilli(),
			}

			parsed, err := DecodeMessage(EncodeMessage(msg))
			if err != nil {
				return false
			}
			return parsed.Type == MessageTypeStatus &&
				parsed.ModuleID == moduleID &&
				parsed.Status == status
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

// For any number of distinct keys inserted into a filter of capacity N, the
// filter never tracks more than N entries, and fresh messages are never
// reported as duplicates because of capacity pressure.
func TestDedupCapacityProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("tracked entries never exceed capacity", prop.ForAll(
		func(capacity, inserts int) bool {
			filter := NewDedupFilter(capacity, time.Minute)

			for i := 0; i < inserts; i++ {
				if filter.IsDuplicate(chatMsg("s1", fmt.Sprintf("m-%d", i))) {
					// Distinct keys must never be reported as duplicates.
					return false
				}
			}
			return filter.Len() <= capacity
		},
		gen.IntRange(1, 50),
		gen.IntRange(0, 200),
	))

	properties.TestingRun(t)
}

// For any set of registered sessions, a broadcast reaches every open one and
// reports exactly that many successes.
func TestBroadcastDeliveryProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("broadcast success count equals open sessions", prop.ForAll(
		func(numOpen, numClosed int) bool {
			registry := NewRegistry()
			router := NewRouter(registry)

			for i := 0; i < numOpen; i++ {
				registry.Attach(nil, fmt.Sprintf("open-%d", i))
			}
			for i := 0; i < numClosed; i++ {
				sess := registry.Attach(nil, fmt.Sprintf("closed-%d", i))
				sess.Close()
			}

			count := router.BroadcastAll(&Message{
				Type:      MessageTypeStatus,
				ModuleID:  "whatsapp",
				Status:    "up",
				Timestamp: time.Now().UnixMilli(),
			})
			return count == numOpen
		},
		gen.IntRange(0, 10),
		gen.IntRange(0, 10),
	))

	properties.TestingRun(t)
}
