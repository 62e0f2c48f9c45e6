package repoharvest

import (
	"encoding/xml"
	"testing"
)

func TestSplitIdentifiers(t *testing.T) {
	doi, urls := splitIdentifiers([]string{
		"https://hdl.handle.net/1887/42",
		"https://doi.org/10.1234/abc",
		"https://scholarlypublications.example.org/item/42",
		"",
	})
	if doi != "https://doi.org/10.1234/abc" {
		t.Errorf("doi = %q", doi)
	}
	if len(urls) != 2 {
		t.Errorf("urls = %v", urls)
	}
}

func TestFlipCreator(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Smith, John", "John Smith"},
		{"John Smith", "John Smith"},
		{" Visser,  Anna ", "Anna Visser"},
	}
	for _, tc := range cases {
		if got := flipCreator(tc.in); got != tc.want {
			t.Errorf("flipCreator(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFoldRights(t *testing.T) {
	if got := foldRights("Creative Commons Attribution 4.0 (CC-BY)"); got != "cc-by" {
		t.Errorf("foldRights = %q", got)
	}
	if got := foldRights("all rights reserved"); got != "" {
		t.Errorf("foldRights = %q", got)
	}
}

func TestDecodeListRecords(t *testing.T) {
	payload := `<?xml version="1.0"?>
<OAI-PMH xmlns="http://www.openarchives.org/OAI/2.0/">
  <ListRecords>
    <record>
      <header><identifier>oai:repo:1</identifier><datestamp>2024-03-01</datestamp></header>
      <metadata>
        <dc>
          <title>A Study</title>
          <creator>Smith, John</creator>
          <date>2024-03-01</date>
          <identifier>https://doi.org/10.1234/abc</identifier>
          <identifier>https://hdl.handle.net/1887/42</identifier>
          <rights>CC-BY 4.0</rights>
        </dc>
      </metadata>
    </record>
    <resumptionToken>token-1</resumptionToken>
  </ListRecords>
</OAI-PMH>`

	var resp OAIResponse
	if err := xml.Unmarshal([]byte(payload), &resp); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(resp.ListRecords.Records) != 1 {
		t.Fatalf("records = %d", len(resp.ListRecords.Records))
	}
	if resp.ListRecords.ResumptionToken != "token-1" {
		t.Errorf("token = %q", resp.ListRecords.ResumptionToken)
	}

	rec := &resp.ListRecords.Records[0]
	doc := mapRecordToDocument(rec)
	if doc.Title != "A Study" || doc.DOI != "https://doi.org/10.1234/abc" || doc.License != "cc-by" {
		t.Errorf("doc = %+v", doc)
	}
	if len(doc.Authors) != 1 || doc.Authors[0].DisplayName != "John Smith" {
		t.Errorf("authors = %+v", doc.Authors)
	}

	rr := mapRecordToRepositoryRecord(rec)
	if rr.OAIIdentifier != "oai:repo:1" || rr.RepoURL != "https://hdl.handle.net/1887/42" {
		t.Errorf("record = %+v", rr)
	}
}
