// Package schemas embeds the JSON Schema draft 2020-12 documents for the
// event envelope and every required event_type payload, so the binary
// carries its contracts without a runtime file dependency.
package schemas

import "embed"

//go:embed *.schema.json
var FS embed.FS
