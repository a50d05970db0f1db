package task

import (
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/phrazzld/shelfd/internal/domain"
)

// OPF 2.0 package document as written next to each book.
type opfPackage struct {
	XMLName          xml.Name    `xml:"package"`
	Xmlns            string      `xml:"xmlns,attr"`
	UniqueIdentifier string      `xml:"unique-identifier,attr"`
	Version          string      `xml:"version,attr"`
	Metadata         opfMetadata `xml:"metadata"`
	Guide            *opfGuide   `xml:"guide,omitempty"`
}

type opfMetadata struct {
	XmlnsDC     string          `xml:"xmlns:dc,attr"`
	XmlnsOPF    string          `xml:"xmlns:opf,attr"`
	Identifiers []opfIdentifier `xml:"dc:identifier"`
	Title       string          `xml:"dc:title"`
	Creators    []opfCreator    `xml:"dc:creator"`
	Date        string          `xml:"dc:date,omitempty"`
	Publisher   string          `xml:"dc:publisher,omitempty"`
	Description string          `xml:"dc:description,omitempty"`
	Languages   []string        `xml:"dc:language"`
	Subjects    []string        `xml:"dc:subject"`
	Meta        []opfMeta       `xml:"meta"`
}

type opfIdentifier struct {
	ID     string `xml:"id,attr,omitempty"`
	Scheme string `xml:"opf:scheme,attr"`
	Value  string `xml:",chardata"`
}

type opfCreator struct {
	Role   string `xml:"opf:role,attr"`
	FileAs string `xml:"opf:file-as,attr,omitempty"`
	Value  string `xml:",chardata"`
}

type opfMeta struct {
	Name    string `xml:"name,attr"`
	Content string `xml:"content,attr"`
}

type opfGuide struct {
	References []opfReference `xml:"reference"`
}

type opfReference struct {
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
	Href  string `xml:"href,attr"`
}

var coverTitles = map[string]string{
	"en": "Cover",
	"de": "Titelbild",
	"fr": "Couverture",
}

func newOPFPackage(b domain.Book, exportLanguage string) opfPackage {
	md := opfMetadata{
		XmlnsDC:  "http://purl.org/dc/elements/1.1/",
		XmlnsOPF: "http://www.idpf.org/2007/opf",
		Identifiers: []opfIdentifier{
			{Scheme: "calibre", Value: strconv.FormatInt(b.ID, 10)},
			{ID: "uuid_id", Scheme: "uuid", Value: b.UUID},
		},
		Title:       b.Title,
		Publisher:   b.Publisher,
		Description: b.Description,
		Subjects:    b.Tags,
	}
	if b.ISBN != "" {
		md.Identifiers = append(md.Identifiers, opfIdentifier{Scheme: "ISBN", Value: b.ISBN})
	}
	for _, a := range b.Authors {
		md.Creators = append(md.Creators, opfCreator{Role: "aut", FileAs: authorSort(a), Value: a})
	}
	if !b.PubDate.IsZero() {
		md.Date = b.PubDate.UTC().Format("2006-01-02T15:04:05+00:00")
	}
	lang := b.Language
	if lang == "" {
		lang = exportLanguage
	}
	if lang != "" {
		md.Languages = []string{lang}
	}
	if b.SeriesName != "" {
		md.Meta = append(md.Meta,
			opfMeta{Name: "calibre:series", Content: b.SeriesName},
			opfMeta{Name: "calibre:series_index", Content: strconv.FormatFloat(b.SeriesIndex, 'f', -1, 64)},
		)
	}
	md.Meta = append(md.Meta,
		opfMeta{Name: "calibre:title_sort", Content: b.Title},
		opfMeta{Name: "calibre:timestamp", Content: b.LastModified.UTC().Format("2006-01-02T15:04:05+00:00")},
	)

	pkg := opfPackage{
		Xmlns:            "http://www.idpf.org/2007/opf",
		UniqueIdentifier: "uuid_id",
		Version:          "2.0",
		Metadata:         md,
	}
	if b.HasCover {
		title, ok := coverTitles[exportLanguage]
		if !ok {
			title = coverTitles["en"]
		}
		pkg.Guide = &opfGuide{References: []opfReference{{Type: "cover", Title: title, Href: "cover.jpg"}}}
	}
	return pkg
}

// authorSort turns "First Last" into "Last, First".
func authorSort(name string) string {
	parts := strings.Fields(name)
	if len(parts) < 2 {
		return name
	}
	last := parts[len(parts)-1]
	return last + ", " + strings.Join(parts[:len(parts)-1], " ")
}

func writeOPF(path string, pkg opfPackage) error {
	body, err := xml.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	data := append([]byte(xml.Header), body...)
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing metadata failed with error: %w", err)
	}
	return nil
}
