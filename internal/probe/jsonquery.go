package probe

import (
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
)

// matchJSONPath runs a jq query against a JSON response body. With no
// expected value given, the query result must be the boolean true (the
// original handler's json_query contract); otherwise the query result's
// string form is compared against expected.
func matchJSONPath(body []byte, query, expected string) (bool, error) {
	parsed, err := gojq.Parse(query)
	if err != nil {
		return false, fmt.Errorf("parse json query: %w", err)
	}

	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return false, fmt.Errorf("decode json body: %w", err)
	}

	iter := parsed.Run(doc)
	v, ok := iter.Next()
	if !ok {
		return false, nil
	}
	if err, ok := v.(error); ok {
		return false, err
	}

	if expected == "" {
		b, ok := v.(bool)
		return ok && b, nil
	}

	return fmt.Sprintf("%v", v) == expected, nil
}
