// package formatter renders recommendations as plain text, Markdown, CSV or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/desertthunder/moodmix/internal/models"
	"github.com/desertthunder/moodmix/internal/services"
	"github.com/desertthunder/moodmix/internal/shared"
)

// Format names accepted by [Render].
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"
	FormatJSON     = "json"
)

// Formats lists every supported output format.
var Formats = []string{FormatText, FormatMarkdown, FormatCSV, FormatJSON}

// Render dispatches to the renderer for format. Unknown formats return [shared.ErrInvalidArgument].
func Render(format string, result *models.RecommendationResult) ([]byte, error) {
	switch strings.ToLower(format) {
	case "", FormatText, "txt":
		return ToText(result)
	case FormatMarkdown, "md":
		return ToMarkdown(result)
	case FormatCSV:
		return ToCSV(result)
	case FormatJSON:
		return shared.MarshalJSON(result, true)
	default:
		return nil, fmt.Errorf("%w: unknown format %q (want one of %s)", shared.ErrInvalidArgument, format, strings.Join(Formats, ", "))
	}
}

// ToText renders a recommendation the way it is shown in a terminal.
func ToText(result *models.RecommendationResult) ([]byte, error) {
	var buf bytes.Buffer
	p := result.Playlist

	fmt.Fprintf(&buf, "Recommended playlist: %s", p.Name)
	if p.Owner != "" {
		fmt.Fprintf(&buf, " (by %s)", p.Owner)
	}
	buf.WriteString("\n")
	if p.ExternalURL != "" {
		fmt.Fprintf(&buf, "Playlist link: %s\n", p.ExternalURL)
	}
	if p.Description != "" {
		fmt.Fprintf(&buf, "Description: %s\n", p.Description)
	}

	buf.WriteString("\nTop recommendations:\n")
	if len(result.Tracks) == 0 {
		buf.WriteString("No tracks found in the playlist.\n")
	}
	for i, t := range result.Tracks {
		link := t.Link()
		if link == "" {
			link = "No preview"
		}
		fmt.Fprintf(&buf, "%d. %s - %s  |  Preview/Link: %s\n", i+1, t.Name, t.ArtistLine(), link)
	}

	return buf.Bytes(), nil
}

// ToMarkdown renders a recommendation as a Markdown document.
func ToMarkdown(result *models.RecommendationResult) ([]byte, error) {
	var buf bytes.Buffer
	p := result.Playlist

	if p.ExternalURL != "" {
		fmt.Fprintf(&buf, "# [%s](%s)\n\n", p.Name, p.ExternalURL)
	} else {
		fmt.Fprintf(&buf, "# %s\n\n", p.Name)
	}

	fmt.Fprintf(&buf, "**Mood**: %s\n", result.Query.Text())
	if p.Owner != "" {
		fmt.Fprintf(&buf, "**Owner**: %s\n", p.Owner)
	}
	fmt.Fprintf(&buf, "**Tracks**: %d of %d\n\n", len(result.Tracks), p.TrackCount)
	if p.Description != "" {
		fmt.Fprintf(&buf, "> %s\n\n", p.Description)
	}

	buf.WriteString("## Tracks\n\n")
	if len(result.Tracks) == 0 {
		buf.WriteString("_No tracks found in the playlist._\n")
	}
	for i, t := range result.Tracks {
		title := t.Name
		if t.ExternalURL != "" {
			title = fmt.Sprintf("[%s](%s)", t.Name, t.ExternalURL)
		}
		fmt.Fprintf(&buf, "%d. %s - %s [%s]", i+1, t.ArtistLine(), title, shared.FormatDuration(t.Duration))
		if t.PreviewURL != "" {
			fmt.Fprintf(&buf, " ([preview](%s))", t.PreviewURL)
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// ToCSV renders the tracks with columns: Position, ID, Name, Artists, Duration, Preview, Link
func ToCSV(result *models.RecommendationResult) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "ID", "Name", "Artists", "Duration", "Preview", "Link"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, t := range result.Tracks {
		record := []string{
			strconv.Itoa(i + 1),
			t.ID,
			t.Name,
			t.ArtistLine(),
			shared.FormatDuration(t.Duration),
			t.PreviewURL,
			t.ExternalURL,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// CandidatesToText renders a ranked candidate list, one playlist per line.
func CandidatesToText(query models.SearchQuery, ranked []services.RankedCandidate) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlists for %q:\n", query.Text())
	for i, c := range ranked {
		name := c.Name
		if name == "" {
			name = "(untitled)"
		}
		fmt.Fprintf(&buf, "%2d. %s [score %d, %d tracks]", i+1, name, c.Score, c.TrackCount)
		if c.Owner != "" {
			fmt.Fprintf(&buf, " by %s", c.Owner)
		}
		buf.WriteString("\n")
		if c.ExternalURL != "" {
			fmt.Fprintf(&buf, "    %s\n", c.ExternalURL)
		}
	}

	return buf.Bytes()
}

// WriteFile renders result in format and writes it to path.
func WriteFile(result *models.RecommendationResult, format, path string) error {
	if path == "" {
		return fmt.Errorf("%w: output path", shared.ErrMissingArgument)
	}

	data, err := Render(format, result)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
