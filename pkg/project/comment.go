package project

import (
	"bufio"
	"slices"
	"strings"

	"github.com/pkg/errors"
)

const (
	configMarkerForInlineComments = "@snapshot."
	commentMarker                 = "--"
)

var (
	possiblePrefixesForCommentBlocks = []string{"/*@snapshot", "/* @snapshot", "/*  @snapshot", "/*   @snapshot"}
	possibleSuffixesForCommentBlocks = []string{"@snapshot*/", "@snapshot */", "@snapshot  */", "@snapshot   */"}
)

// snapshotFile is a snapshot definition file split into its YAML header and the source query.
type snapshotFile struct {
	header string
	body   string
}

// splitSnapshotFile accepts either a leading /* @snapshot ... @snapshot */ block or "-- @snapshot.key: value"
// comments anywhere in the file. A file with neither has an empty header.
func splitSnapshotFile(content string) (*snapshotFile, error) {
	lines := readLines(content)

	first := -1
	for i, row := range lines {
		if strings.TrimSpace(row) != "" {
			first = i
			break
		}
	}
	if first == -1 {
		return &snapshotFile{}, nil
	}

	if slices.Contains(possiblePrefixesForCommentBlocks, strings.TrimSpace(lines[first])) {
		return splitCommentBlock(lines[first+1:])
	}

	return splitInlineComments(lines), nil
}

func splitCommentBlock(lines []string) (*snapshotFile, error) {
	for i, row := range lines {
		if !slices.Contains(possibleSuffixesForCommentBlocks, strings.TrimSpace(row)) {
			continue
		}

		return &snapshotFile{
			header: strings.Join(lines[:i], "\n"),
			body:   strings.TrimSpace(strings.Join(lines[i+1:], "\n")),
		}, nil
	}

	return nil, errors.New("the @snapshot comment block is never closed, end it with '@snapshot */'")
}

func splitInlineComments(lines []string) *snapshotFile {
	var headerRows, bodyRows []string
	for _, row := range lines {
		trimmed := strings.TrimSpace(row)
		if !strings.HasPrefix(trimmed, commentMarker) {
			bodyRows = append(bodyRows, row)
			continue
		}

		commentValue := strings.TrimSpace(strings.TrimPrefix(trimmed, commentMarker))
		if !strings.HasPrefix(commentValue, configMarkerForInlineComments) {
			bodyRows = append(bodyRows, row)
			continue
		}

		key, value, found := strings.Cut(strings.TrimPrefix(commentValue, configMarkerForInlineComments), ":")
		if !found {
			continue
		}
		headerRows = append(headerRows, strings.TrimSpace(key)+": "+strings.TrimSpace(value))
	}

	return &snapshotFile{
		header: strings.Join(headerRows, "\n"),
		body:   strings.TrimSpace(strings.Join(bodyRows, "\n")),
	}
}

func readLines(content string) []string {
	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	return lines
}
