package crossref

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/matsen/reflink/internal/journal"
)

// CitationNamespace is the Crossref schema namespace of citation_list elements.
const CitationNamespace = "http://www.crossref.org/schema/5.4.0"

// CitationLookup returns the citations of the publication registered under
// doi. A nil slice means the DOI is unknown or has no citations.
type CitationLookup func(doi string) ([]journal.Citation, error)

type citationListXML struct {
	XMLName   xml.Name      `xml:"citation_list"`
	Xmlns     string        `xml:"xmlns,attr"`
	Citations []citationXML `xml:"citation"`
}

type citationXML struct {
	Key          string `xml:"key,attr"`
	DOI          string `xml:"doi,omitempty"`
	Unstructured string `xml:"unstructured_citation,omitempty"`
}

// ParseDiagnosticID extracts the deferred citations diagnostic code from a
// Crossref deposit response. found is false when the response carries no
// citations_diagnostic element, i.e. no references were deposited.
func ParseDiagnosticID(response []byte) (id string, found bool, err error) {
	dec := xml.NewDecoder(bytes.NewReader(response))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return "", false, nil
		}
		if err != nil {
			return "", false, fmt.Errorf("parsing deposit response: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "citations_diagnostic" {
			continue
		}
		for _, attr := range start.Attr {
			if attr.Name.Local == "deferred" {
				return strings.TrimSpace(attr.Value), true, nil
			}
		}
		return "", true, nil
	}
}

// depositInsertion marks where a citation_list goes in the deposit XML.
type depositInsertion struct {
	offset int64 // Byte offset just past the article's </doi_data>
	doi    string
}

// AddCitationList adds a citation_list after the doi_data element of every
// journal_article in a Crossref deposit document. Citations that already have
// a resolved DOI are deposited by DOI, the rest as unstructured text.
// Articles whose DOI the lookup does not know are left untouched.
func AddCitationList(depositXML []byte, lookup CitationLookup) ([]byte, error) {
	inserts, err := findDOIDataEnds(depositXML)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	var last int64
	for _, ins := range inserts {
		citations, err := lookup(ins.doi)
		if err != nil {
			return nil, fmt.Errorf("looking up citations for %s: %w", ins.doi, err)
		}
		list, err := renderCitationList(citations)
		if err != nil {
			return nil, fmt.Errorf("rendering citations for %s: %w", ins.doi, err)
		}
		if list == nil {
			continue
		}
		out.Write(depositXML[last:ins.offset])
		out.Write(list)
		last = ins.offset
	}
	out.Write(depositXML[last:])

	return out.Bytes(), nil
}

// findDOIDataEnds scans the deposit for the first doi_data of each journal_article.
func findDOIDataEnds(depositXML []byte) ([]depositInsertion, error) {
	dec := xml.NewDecoder(bytes.NewReader(depositXML))

	var (
		inserts                     []depositInsertion
		inArticle, inDOIData, inDOI bool
		seenDOIData                 bool
		doi                         strings.Builder
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing deposit XML: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "journal_article":
				inArticle = true
				seenDOIData = false
			case "doi_data":
				if inArticle && !seenDOIData {
					inDOIData = true
					doi.Reset()
				}
			case "doi":
				if inDOIData && doi.Len() == 0 {
					inDOI = true
				}
			}
		case xml.CharData:
			if inDOI {
				doi.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "doi":
				inDOI = false
			case "doi_data":
				if inDOIData {
					inDOIData = false
					seenDOIData = true
					inserts = append(inserts, depositInsertion{
						offset: dec.InputOffset(),
						doi:    strings.TrimSpace(doi.String()),
					})
				}
			case "journal_article":
				inArticle = false
			}
		}
	}

	return inserts, nil
}

// renderCitationList builds the citation_list element, or nil if no citation
// has raw text.
func renderCitationList(citations []journal.Citation) ([]byte, error) {
	list := citationListXML{Xmlns: CitationNamespace}
	for _, c := range citations {
		if strings.TrimSpace(c.RawCitation) == "" {
			continue
		}
		entry := citationXML{Key: c.Key()}
		if c.HasDOI() {
			entry.DOI = c.DOI
		} else {
			entry.Unstructured = c.RawCitation
		}
		list.Citations = append(list.Citations, entry)
	}
	if len(list.Citations) == 0 {
		return nil, nil
	}
	return xml.Marshal(list)
}
