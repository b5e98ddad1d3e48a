// README: Message-template catalog: symbolic keys mapped to format strings.
package messages

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog resolves symbolic message keys to user-facing text. Templates are
// plain fmt format strings; arguments are substituted explicitly, never
// evaluated.
type Catalog struct {
	templates map[string]string
}

// defaults are the built-in templates. A YAML override file can replace any
// subset of them. Key spelling (including UNKOWN_*) follows the original
// message configuration so existing override files keep working.
var defaults = map[string]string{
	"SAY_HELLO":                     "Hello! Ask me when you should leave and I will watch the traffic for you.",
	"DETECTED_WHEN_SHOULD_I_LEAVE":  "Alright, let's find out when you need to go.",
	"ORIGIN":                        "Where are you starting from?",
	"DESTINATION":                   "Where are you heading?",
	"TARGET_DURATION":               "How many minutes may the drive take? I will tell you once traffic allows it.",
	"CHOOSE_LOCATION":               "I found more than one match. Reply with the number of the one you mean:\n%s",
	"NO_LOCATION_FOUND":             "I could not find that place. Try a more specific description.",
	"SELECTION_OUT_OF_BOUNDS":       "Please reply with a number between 1 and %d.",
	"EXISTING_REQUEST":              "You already have a request running. ",
	"CURRENT_TRAVEL_TIME":           "Current travel time with traffic: %s",
	"I_WILL_NOTIFY":                 "I will let you know as soon as you can make it in %d minutes.",
	"YOU_CAN_LEAVE_NOW":             "You can leave now! Current travel time to %s: %s",
	"TIME_EXCEEDED":                 "I have been watching for a while, but traffic never dropped to your target. Giving up for now.",
	"REQUEST_CANCELLED":             "Okay, I cancelled your request.",
	"UNKOWN_COMMAND":                "Sorry, I did not understand that. Ask me when you should leave.",
	"UNKOWN_USER":                   "Sorry, I could not look you up on this workspace.",
	"SERVICE_ERROR":                 "Something went wrong talking to my backends. Please try again.",
}

// NewCatalog returns a catalog with the built-in templates, overridden by the
// YAML file at path when path is non-empty.
func NewCatalog(path string) (*Catalog, error) {
	templates := make(map[string]string, len(defaults))
	for k, v := range defaults {
		templates[k] = v
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read messages file: %w", err)
		}
		var overrides map[string]string
		if err := yaml.Unmarshal(raw, &overrides); err != nil {
			return nil, fmt.Errorf("parse messages file: %w", err)
		}
		for k, v := range overrides {
			if _, ok := templates[k]; !ok {
				return nil, fmt.Errorf("unknown message key %q in %s", k, path)
			}
			templates[k] = v
		}
	}

	return &Catalog{templates: templates}, nil
}

// Get formats the template for key with args. Unknown keys return the key
// itself so a missing template is visible in chat instead of dropping the
// reply.
func (c *Catalog) Get(key string, args ...any) string {
	tmpl, ok := c.templates[key]
	if !ok {
		return key
	}
	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}
