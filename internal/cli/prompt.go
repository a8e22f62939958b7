package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
)

// PromptForVideo asks for a video path on in. An empty answer returns "".
func PromptForVideo(in io.Reader, out io.Writer) string {
	fmt.Fprint(out, "Video file: ")

	reader := bufio.NewReader(in)
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		log.Warn().Err(err).Msg("Failed to read input")
		return ""
	}

	// Paths dragged into a terminal arrive quoted.
	return strings.Trim(strings.TrimSpace(input), `"'`)
}
