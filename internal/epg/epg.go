// Package epg rewrites an XMLTV guide so channel ids are derived from display
// names, and keeps programme references pointing at the new ids.
package epg

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

var turkishFold = strings.NewReplacer(
	"Ç", "c", "Ş", "s", "Ğ", "g", "Ü", "u", "İ", "i", "Ö", "o",
	"ç", "c", "ş", "s", "ğ", "g", "ı", "i", "ü", "u", "ö", "o",
)

// ChannelID derives a guide id from a display name: Turkish letters folded to
// ASCII, lower-cased, spaces removed, then every "hd" and ".tr" removed.
func ChannelID(name string) string {
	id := strings.ToLower(turkishFold.Replace(strings.TrimSpace(name)))
	id = strings.ReplaceAll(id, " ", "")
	id = strings.ReplaceAll(id, "hd", "")
	return strings.ReplaceAll(id, ".tr", "")
}

// Mapping is one rewritten channel.
type Mapping struct {
	Name  string // first display-name
	OldID string
	ID    string
}

// Rewrite copies the XMLTV document from src to dst with an XML declaration,
// replacing each <channel> id by ChannelID of its first display-name and
// updating <programme channel> to match. Channels without a display-name and
// programmes for unknown channels are copied unchanged.
func Rewrite(dst io.Writer, src io.Reader) ([]Mapping, error) {
	dec := xml.NewDecoder(src)
	dec.CharsetReader = charset.NewReaderLabel
	enc := xml.NewEncoder(dst)
	if _, err := io.WriteString(dst, xml.Header); err != nil {
		return nil, err
	}

	var mappings []Mapping
	ids := map[string]string{}
	depth := 0
	wroteRoot := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				if t.Name.Local != "tv" {
					return nil, fmt.Errorf("xmltv: root is <%s>, want <tv>", t.Name.Local)
				}
				if err := enc.EncodeToken(t); err != nil {
					return nil, err
				}
				depth, wroteRoot = 1, true
				continue
			}
			var node rawNode
			if err := dec.DecodeElement(&node, &t); err != nil {
				return nil, err
			}
			switch t.Name.Local {
			case "channel":
				if m, ok := remapChannel(&node); ok {
					mappings = append(mappings, m)
					ids[m.OldID] = m.ID
				}
			case "programme":
				if id, ok := ids[strings.TrimSpace(attr(node.Attrs, "channel"))]; ok {
					node.Attrs = setAttr(node.Attrs, "channel", id)
				}
			}
			if err := enc.EncodeElement(node, xml.StartElement{Name: xml.Name{Local: t.Name.Local}}); err != nil {
				return nil, err
			}
		case xml.EndElement:
			if err := enc.EncodeToken(t); err != nil {
				return nil, err
			}
			depth--
		case xml.CharData:
			if depth > 0 {
				if err := enc.EncodeToken(t.Copy()); err != nil {
					return nil, err
				}
			}
		case xml.Comment:
			if err := enc.EncodeToken(t.Copy()); err != nil {
				return nil, err
			}
		}
	}
	if !wroteRoot {
		return nil, errors.New("xmltv root <tv> not found")
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	_, err := io.WriteString(dst, "\n")
	return mappings, err
}

func remapChannel(node *rawNode) (Mapping, bool) {
	var kids struct {
		Names []string `xml:"display-name"`
	}
	if err := xml.Unmarshal([]byte("<c>"+node.InnerXML+"</c>"), &kids); err != nil || len(kids.Names) == 0 {
		return Mapping{}, false
	}
	name := strings.TrimSpace(kids.Names[0])
	m := Mapping{Name: name, OldID: attr(node.Attrs, "id"), ID: ChannelID(name)}
	node.Attrs = setAttr(node.Attrs, "id", m.ID)
	return m, true
}

// WriteMapping writes one "name => id" line per mapping.
func WriteMapping(w io.Writer, mappings []Mapping) error {
	for _, m := range mappings {
		if _, err := fmt.Fprintf(w, "%s => %s\n", m.Name, m.ID); err != nil {
			return err
		}
	}
	return nil
}

type rawNode struct {
	XMLName  xml.Name   `xml:""`
	Attrs    []xml.Attr `xml:",any,attr"`
	InnerXML string     `xml:",innerxml"`
}

func attr(attrs []xml.Attr, key string) string {
	for _, a := range attrs {
		if a.Name.Local == key {
			return a.Value
		}
	}
	return ""
}

func setAttr(attrs []xml.Attr, key, value string) []xml.Attr {
	for i := range attrs {
		if attrs[i].Name.Local == key {
			attrs[i].Value = value
			return attrs
		}
	}
	return append(attrs, xml.Attr{Name: xml.Name{Local: key}, Value: value})
}
