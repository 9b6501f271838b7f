package pagbank

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// Transaction is the part of a PagBank transaction the service cares about.
type Transaction struct {
	Status    int
	Code      string
	Reference string
	Email     string
	TaxID     string
}

// Wire layout of GET /v3/transactions/notifications/{code}.
type transactionXML struct {
	XMLName   xml.Name `xml:"transaction"`
	Code      string   `xml:"code"`
	Reference string   `xml:"reference"`
	Status    int      `xml:"status"`
	Sender    struct {
		Email     string `xml:"email"`
		Documents struct {
			Document []struct {
				Type  string `xml:"type"`
				Value string `xml:"value"`
			} `xml:"document"`
		} `xml:"documents"`
	} `xml:"sender"`
}

func decodeTransaction(r io.Reader) (*Transaction, error) {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charsetReader

	var doc transactionXML
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode transaction XML: %w", err)
	}
	return translateTransaction(doc), nil
}

// translateTransaction holds every provider field path.
func translateTransaction(doc transactionXML) *Transaction {
	tx := &Transaction{
		Status:    doc.Status,
		Code:      strings.TrimSpace(doc.Code),
		Reference: strings.TrimSpace(doc.Reference),
		Email:     strings.TrimSpace(doc.Sender.Email),
	}
	for _, d := range doc.Sender.Documents.Document {
		if strings.EqualFold(strings.TrimSpace(d.Type), "CPF") {
			tx.TaxID = strings.TrimSpace(d.Value)
			break
		}
	}
	return tx
}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(charset) {
	case "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	default:
		return nil, fmt.Errorf("unsupported charset %q", charset)
	}
}
