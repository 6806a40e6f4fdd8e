package epg

import (
	"bytes"
	"encoding/xml"
	"strings"
	"testing"
)

func TestChannelID(t *testing.T) {
	cases := map[string]string{
		"TRT 1 HD":      "trt1",
		"Show TV":       "showtv",
		"ATV HD.tr":     "atv",
		"ÇOCUK Ğ":       "cocukg",
		"İZ TV":         "iztv",
		" Kanal D ":     "kanald",
		"şöğüıç":        "soguic",
		"TV8.tr":        "tv8",
		"HDTV Belgesel": "tvbelgesel",
	}
	for in, want := range cases {
		if got := ChannelID(in); got != want {
			t.Errorf("ChannelID(%q) = %q, want %q", in, got, want)
		}
	}
}

const guide = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE tv SYSTEM "xmltv.dtd">
<tv generator-info-name="test">
  <channel id="TRT1.tr"><display-name lang="tr">TRT 1 HD</display-name><display-name>TRT1</display-name></channel>
  <channel id="nameless"><icon src="a.png"/></channel>
  <programme start="20240101000000 +0300" channel="TRT1.tr"><title lang="tr">Haber &amp; Spor</title></programme>
  <programme start="20240101010000 +0300" channel="other"><title>X</title></programme>
</tv>
`

type parsedGuide struct {
	Generator string `xml:"generator-info-name,attr"`
	Channels  []struct {
		ID    string   `xml:"id,attr"`
		Names []string `xml:"display-name"`
	} `xml:"channel"`
	Programmes []struct {
		Channel string `xml:"channel,attr"`
		Title   string `xml:"title"`
	} `xml:"programme"`
}

func TestRewrite(t *testing.T) {
	var out bytes.Buffer
	mappings, err := Rewrite(&out, strings.NewReader(guide))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), xml.Header) {
		t.Errorf("missing declaration: %q", out.String()[:40])
	}
	if len(mappings) != 1 || mappings[0] != (Mapping{Name: "TRT 1 HD", OldID: "TRT1.tr", ID: "trt1"}) {
		t.Fatalf("mappings = %+v", mappings)
	}

	var g parsedGuide
	if err := xml.Unmarshal(out.Bytes(), &g); err != nil {
		t.Fatalf("output does not parse: %v\n%s", err, out.String())
	}
	if g.Generator != "test" {
		t.Errorf("root attrs lost: %+v", g)
	}
	if len(g.Channels) != 2 || g.Channels[0].ID != "trt1" || g.Channels[1].ID != "nameless" {
		t.Errorf("channels = %+v", g.Channels)
	}
	if len(g.Channels[0].Names) != 2 {
		t.Errorf("display names = %v", g.Channels[0].Names)
	}
	if len(g.Programmes) != 2 || g.Programmes[0].Channel != "trt1" || g.Programmes[1].Channel != "other" {
		t.Errorf("programmes = %+v", g.Programmes)
	}
	if g.Programmes[0].Title != "Haber & Spor" {
		t.Errorf("title = %q", g.Programmes[0].Title)
	}
}

func TestRewrite_legacyCharset(t *testing.T) {
	// 0xDE is Ş in ISO-8859-9.
	doc := "<?xml version=\"1.0\" encoding=\"ISO-8859-9\"?><tv><channel id=\"x\"><display-name>\xdeOW TV</display-name></channel></tv>"
	var out bytes.Buffer
	mappings, err := Rewrite(&out, strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	if len(mappings) != 1 || mappings[0].ID != "sowtv" || mappings[0].Name != "ŞOW TV" {
		t.Errorf("mappings = %+v", mappings)
	}
}

func TestRewrite_wrongRoot(t *testing.T) {
	var out bytes.Buffer
	if _, err := Rewrite(&out, strings.NewReader("<html></html>")); err == nil {
		t.Error("want error for non-XMLTV root")
	}
	out.Reset()
	if _, err := Rewrite(&out, strings.NewReader("")); err == nil {
		t.Error("want error for empty document")
	}
}

func TestWriteMapping(t *testing.T) {
	var b bytes.Buffer
	err := WriteMapping(&b, []Mapping{{Name: "TRT 1 HD", ID: "trt1"}, {Name: "Show TV", ID: "showtv"}})
	if err != nil {
		t.Fatal(err)
	}
	if b.String() != "TRT 1 HD => trt1\nShow TV => showtv\n" {
		t.Errorf("got %q", b.String())
	}
}
