package crawler

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"blsdata/internal/models"
	"blsdata/pkg/utils"
)

// Index parsing errors.
var (
	ErrNoPreBlock       = errors.New("no <pre> block found on the page")
	ErrInvalidTimestamp = errors.New("invalid listing timestamp")
	ErrInvalidSize      = errors.New("invalid listing size")
)

// ListingLayout is the date/time layout used by the directory index.
const ListingLayout = "1/2/2006 3:04 PM"

var text = utils.NewStringHelper()

// listingPattern matches "M/D/YYYY  H:MM AM  1,234" fragments.
var listingPattern = regexp.MustCompile(`(\d{1,2}/\d{1,2}/\d{4})\s+(\d{1,2}:\d{2}\s+[AP]M)\s+([\d,]+)`)

// ParseIndex extracts the file entries of an HTML directory index. The
// metadata of an anchor is read from the first text node following it.
// A repeated file name keeps its first position and its last metadata.
func ParseIndex(baseURL string, content []byte) ([]models.ListingEntry, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse index: %w", err)
	}

	pre := findFirst(doc, atom.Pre)
	if pre == nil {
		return nil, ErrNoPreBlock
	}

	var entries []models.ListingEntry

	positions := make(map[string]int)

	for _, anchor := range findAll(pre, atom.A) {
		href := attr(anchor, "href")
		if href == "" || strings.Contains(href, "Parent Directory") || strings.HasSuffix(href, "/") {
			continue
		}

		fileName := href[strings.LastIndex(href, "/")+1:]
		if strings.TrimSpace(fileName) == "" {
			continue
		}

		entry := models.ListingEntry{
			FileName: fileName,
			URL:      baseURL + fileName,
		}

		if fragment := nextTextSibling(anchor); fragment != nil {
			if err := applyFragment(&entry, strings.TrimSpace(fragment.Data)); err != nil {
				return nil, fmt.Errorf("entry %s: %w", fileName, err)
			}
		}

		if i, ok := positions[fileName]; ok {
			entries[i] = entry

			continue
		}

		positions[fileName] = len(entries)
		entries = append(entries, entry)
	}

	return entries, nil
}

// ParseListingTime converts the index date and time into the manifest
// timestamp layout.
func ParseListingTime(date, clock string) (string, error) {
	value := date + " " + text.NormalizeWhitespace(clock)

	t, err := time.Parse(ListingLayout, value)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrInvalidTimestamp, value, err)
	}

	return t.Format(models.TimestampLayout), nil
}

func applyFragment(entry *models.ListingEntry, fragment string) error {
	match := listingPattern.FindStringSubmatch(fragment)
	if match == nil {
		return nil
	}

	size, err := strconv.ParseInt(strings.ReplaceAll(match[3], ",", ""), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidSize, match[3])
	}

	timestamp, err := ParseListingTime(match[1], match[2])
	if err != nil {
		return err
	}

	entry.Date = match[1]
	entry.Time = match[2]
	entry.Size = &size
	entry.Timestamp = &timestamp

	return nil
}

func findFirst(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, a); found != nil {
			return found
		}
	}

	return nil
}

func findAll(n *html.Node, a atom.Atom) []*html.Node {
	var out []*html.Node

	var walk func(*html.Node)
	walk = func(node *html.Node) {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.DataAtom == a {
				out = append(out, c)
			}

			walk(c)
		}
	}
	walk(n)

	return out
}

func nextTextSibling(n *html.Node) *html.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.TextNode {
			return s
		}
	}

	return nil
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}

	return ""
}
