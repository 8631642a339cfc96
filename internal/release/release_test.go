package release

import (
	"encoding/json"
	"reflect"
	"testing"
)

func links(rs []Release) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Link)
	}
	return out
}

func TestNovelExampleScenario(t *testing.T) {
	t.Parallel()
	log := NewLog([]Record{{Link: "/a"}})
	candidates := []Release{
		{Link: "/a", Title: "A", Artist: "X"},
		{Link: "/b", Title: "B", Artist: "Y"},
	}

	got := Novel(candidates, log)
	if !reflect.DeepEqual(links(got), []string{"/b"}) {
		t.Fatalf("Novel = %v, want [/b]", links(got))
	}
}

func TestNovelIsIdempotent(t *testing.T) {
	t.Parallel()
	log := NewLog([]Record{{Link: "/1"}, {Link: "/3"}})
	candidates := []Release{{Link: "/4"}, {Link: "/3"}, {Link: "/2"}, {Link: "/1"}}

	first := Novel(candidates, log)
	second := Novel(candidates, log)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("filtering twice differs: %v vs %v", first, second)
	}
	if !reflect.DeepEqual(links(first), []string{"/4", "/2"}) {
		t.Fatalf("Novel = %v, want [/4 /2]", links(first))
	}
	if log.Len() != 2 {
		t.Fatalf("Novel mutated the log: len=%d", log.Len())
	}
}

func TestNovelIdentityIsLinkOnly(t *testing.T) {
	t.Parallel()
	log := NewLog([]Record{{Link: "/a", Title: "song"}})
	got := Novel([]Release{{Link: "/a", Title: "SONG", Artist: "other"}}, log)
	if len(got) != 0 {
		t.Fatalf("expected no novel releases, got %v", got)
	}
}

func TestNovelDropsDuplicatesWithinPage(t *testing.T) {
	t.Parallel()
	got := Novel([]Release{{Link: "/x", Title: "first"}, {Link: "/x", Title: "second"}, {Link: ""}}, NewLog(nil))
	if len(got) != 1 || got[0].Title != "first" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestLogAppendAndTruncate(t *testing.T) {
	t.Parallel()
	log := NewLog([]Record{{Link: "/a"}, {Link: "/a"}, {Link: ""}})
	if log.Len() != 1 {
		t.Fatalf("len = %d, want 1", log.Len())
	}
	if !log.Append(Record{Link: "/b"}) {
		t.Fatal("append /b should succeed")
	}
	if log.Append(Record{Link: "/b"}) {
		t.Fatal("second append of /b should be rejected")
	}

	log.Truncate(1)
	if log.Len() != 1 || log.Contains("/b") {
		t.Fatalf("truncate did not roll back /b: %v", log.Records())
	}
	if !log.Contains("/a") {
		t.Fatal("truncate removed /a")
	}
}

func TestLogRecordsIsCopy(t *testing.T) {
	t.Parallel()
	log := NewLog([]Record{{Link: "/a"}})
	rs := log.Records()
	rs[0].Link = "/changed"
	if !log.Contains("/a") || log.Records()[0].Link != "/a" {
		t.Fatal("Records exposed internal storage")
	}
}

func TestReverse(t *testing.T) {
	t.Parallel()
	got := Reverse([]Release{{Link: "/3"}, {Link: "/2"}, {Link: "/1"}})
	if !reflect.DeepEqual(links(got), []string{"/1", "/2", "/3"}) {
		t.Fatalf("Reverse = %v", links(got))
	}
}

func TestRecordJSONKeys(t *testing.T) {
	t.Parallel()
	b, err := json.Marshal(Release{Link: "https://x/a", Title: "Ação", Artist: "Banda", ImageURL: "img"}.Record())
	if err != nil {
		t.Fatal(err)
	}
	want := `{"link":"https://x/a","titulo":"Ação","artista":"Banda"}`
	if string(b) != want {
		t.Fatalf("json = %s, want %s", b, want)
	}

	var r Record
	if err := json.Unmarshal([]byte(`{"link":" /b ","title":"T","artist":"A"}`), &r); err != nil {
		t.Fatal(err)
	}
	if r != (Record{Link: "/b", Title: "T", Artist: "A"}) {
		t.Fatalf("decoded %+v", r)
	}
}
