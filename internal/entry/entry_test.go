package entry

import (
	"strings"
	"testing"

	check "gopkg.in/check.v1"

	"github.com/mycok/sdnsync/internal/feed"
	"github.com/mycok/sdnsync/internal/xmltree"
)

var _ = check.Suite(new(entryTestSuite))

func Test(t *testing.T) {
	check.TestingT(t)
}

type entryTestSuite struct{}

const sampleFeed = `<?xml version="1.0" standalone="yes"?>
<sdnList>
  <publshInformation>
    <Publish_Date>01/10/2024</Publish_Date>
    <Record_Count>2</Record_Count>
  </publshInformation>
  <sdnEntry>
    <uid>36</uid>
    <lastName>AEROCARIBBEAN AIRLINES</lastName>
    <sdnType>Entity</sdnType>
    <programList>
      <program>CUBA</program>
    </programList>
  </sdnEntry>
  <sdnEntry>
    <uid>173</uid>
    <lastName>ANGLO-CARIBBEAN CO., LTD.</lastName>
    <akaList>
      <aka><uid>12</uid><lastName>FIRST</lastName></aka>
      <aka><uid>13</uid><lastName>SECOND</lastName></aka>
    </akaList>
  </sdnEntry>
</sdnList>`

func (s *entryTestSuite) TestExtract(c *check.C) {
	root, err := xmltree.Parse(strings.NewReader(sampleFeed))
	c.Assert(err, check.IsNil)

	entries := Extract(root, feed.Source{Ordinal: 1, URL: feed.SDNURL})
	c.Assert(entries, check.HasLen, 2)

	c.Assert(entries[0], check.DeepEquals, Entry{
		"uid":         "36",
		"lastName":    "AEROCARIBBEAN AIRLINES",
		"sdnType":     "Entity",
		"programList": map[string]interface{}{"program": "CUBA"},
		SourceField:   1,
	})

	// Repeated aka elements collapse onto the last one.
	c.Assert(entries[1]["akaList"], check.DeepEquals, map[string]interface{}{
		"aka": map[string]interface{}{"uid": "13", "lastName": "SECOND"},
	})
	c.Assert(entries[1][SourceField], check.Equals, 1)
}

func (s *entryTestSuite) TestExtractScalarEntry(c *check.C) {
	root := &xmltree.Element{Name: "sdnList", Children: []xmltree.Node{
		&xmltree.Element{Name: "sdnEntry", Children: []xmltree.Node{xmltree.Text("orphan")}},
	}}

	entries := Extract(root, feed.Source{Ordinal: 0})
	c.Assert(entries, check.DeepEquals, []Entry{
		{xmltree.TextKey: "orphan", SourceField: 0},
	})
}

func (s *entryTestSuite) TestExtractWithoutEntries(c *check.C) {
	root := &xmltree.Element{Name: "sdnList"}
	c.Assert(Extract(root, feed.Source{}), check.HasLen, 0)
}

func (s *entryTestSuite) TestID(c *check.C) {
	e := Entry{"uid": "36", SourceField: 1}
	c.Assert(e.ID(), check.Equals, "1-36")

	noUID := Entry{SourceField: 0}
	c.Assert(noUID.ID(), check.Not(check.Equals), noUID.ID())
}
