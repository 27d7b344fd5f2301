package assets

import (
	"bytes"
	"fmt"
	"os"
)

// EndpointPlaceholder is the token in the dashboard source that gets
// replaced with the live API endpoint at publish time.
const EndpointPlaceholder = "REPLACE_ME_WITH_YOUR_INVOKE_URL"

// RenderSite loads the dashboard document and bakes the API endpoint into
// it. Callers treat fs.ErrNotExist as publish-nothing.
func RenderSite(path, apiURL string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dashboard source: %w", err)
	}
	return bytes.ReplaceAll(raw, []byte(EndpointPlaceholder), []byte(apiURL)), nil
}
