package agent

import (
	"encoding/base64"
	"fmt"
	"io"

	"github.com/thruflo/sightline/internal/browser"
)

// writeInlineImage emits an iTerm2 inline image escape sequence. Terminals
// without support print nothing visible.
func writeInlineImage(w io.Writer, shot browser.DataURL) {
	data, err := shot.Decode()
	if err != nil {
		return
	}
	fmt.Fprintf(w, "\x1b]1337;File=inline=1;size=%d:%s\a\n", len(data), base64.StdEncoding.EncodeToString(data))
}
