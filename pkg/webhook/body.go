package webhook

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

var errEmptyDocument = errors.New("document has no root element")

// decodeBody turns a delivery body into a map tree. JSON is the default;
// XML covers Atom-feed style notifications (PubSubHubbub).
func decodeBody(contentType string, body []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]any{}, nil
	}

	if isXMLContentType(contentType) {
		return decodeXMLBody(body)
	}

	var decoded map[string]any

	err := json.Unmarshal(body, &decoded)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JSON body: %w", err)
	}

	return decoded, nil
}

func isXMLContentType(contentType string) bool {
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))

	return mediaType == "application/xml" ||
		mediaType == "text/xml" ||
		strings.HasSuffix(mediaType, "+xml")
}

// decodeXMLBody builds a map tree from an XML document: child elements become
// keys (repeated names collapse into slices), attributes become keys on their
// element, and leaf text becomes the element's value.
func decodeXMLBody(body []byte) (map[string]any, error) {
	decoder := xml.NewDecoder(bytes.NewReader(body))

	for {
		token, err := decoder.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errEmptyDocument
			}

			return nil, fmt.Errorf("failed to parse XML body: %w", err)
		}

		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}

		value, err := decodeXMLElement(decoder, start)
		if err != nil {
			return nil, fmt.Errorf("failed to parse XML body: %w", err)
		}

		return map[string]any{start.Name.Local: value}, nil
	}
}

func decodeXMLElement(decoder *xml.Decoder, start xml.StartElement) (any, error) {
	children := make(map[string]any)

	for _, attr := range start.Attr {
		children[attr.Name.Local] = attr.Value
	}

	var text strings.Builder

	for {
		token, err := decoder.Token()
		if err != nil {
			return nil, err
		}

		switch t := token.(type) {
		case xml.StartElement:
			child, err := decodeXMLElement(decoder, t)
			if err != nil {
				return nil, err
			}

			name := t.Name.Local
			if existing, ok := children[name]; ok {
				if list, ok := existing.([]any); ok {
					children[name] = append(list, child)
				} else {
					children[name] = []any{existing, child}
				}
			} else {
				children[name] = child
			}

		case xml.CharData:
			text.Write(t)

		case xml.EndElement:
			content := strings.TrimSpace(text.String())

			if len(children) == 0 {
				return content, nil
			}

			if content != "" {
				children["#text"] = content
			}

			return children, nil
		}
	}
}
