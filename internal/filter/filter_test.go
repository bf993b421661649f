package filter_test

import (
	"errors"
	"testing"

	"libconv/internal/filter"
)

var testSchema = filter.Schema{
	"filePath":           filter.KindString,
	"videoCodecName":     filter.KindString,
	"fileSize":           filter.KindNumber,
	"kbps":               filter.KindNumber,
	"frameHeight":        filter.KindNumber,
	"originalFileBackup": filter.KindString,
}

type row map[string]filter.Value

func (r row) FieldValue(column string) filter.Value {
	v, ok := r[column]
	if !ok {
		return filter.Value{Null: true}
	}
	return v
}

func sampleRow() row {
	return row{
		"filePath":       filter.StringValue("/media/Movies/Heat (1995)/Heat (1995).mp4"),
		"videoCodecName": filter.StringValue("h264"),
		"fileSize":       filter.NumberValue(8_000_000_000),
		"kbps":           filter.NumberValue(7200),
		"frameHeight":    filter.NumberValue(1080),
	}
}

func TestParseAndEval(t *testing.T) {
	tests := []struct {
		src  string
		want bool
	}{
		{"", true},
		{"WHERE", true},
		{"WHERE videoCodecName = 'h264'", true},
		{"where videoCodecName <> 'h264'", false},
		{"videoCodecName != \"hevc\"", true},
		{"kbps > 3000 AND frameHeight >= 1080", true},
		{"kbps > 3000 AND frameHeight > 1080", false},
		{"kbps < 3000 OR videoCodecName = 'h264'", true},
		{"NOT (kbps < 3000 OR videoCodecName = 'h264')", false},
		{"fileSize > '5000000'", true},
		{"filePath LIKE '%heat%'", true},
		{"filePath NOT LIKE '%/TV/%'", true},
		{"filePath LIKE '/media/_ovies/%.mp4'", true},
		{"videoCodecName IN ('hevc', 'av1')", false},
		{"videoCodecName NOT IN ('hevc', 'av1')", true},
		{"frameHeight IN (720, 1080)", true},
		{"instr(filePath, 'Heat')", true},
		{"NOT instr(filePath,'-trailer.')", true},
		{"instr(filePath, 'Heat') = 0", false},
		{"instr(filePath, '/media') = 1", true},
		{"filePath CONTAINS 'Movies'", true},
		{"filePath CONTAINS 'movies'", false},
		{"originalFileBackup IS NULL", true},
		{"originalFileBackup IS NOT NULL", false},
		{"originalFileBackup = ''", false},
		{"[kbps] > 1 and `frameHeight` = 1080", true},
		{"VIDEOCODECNAME = 'h264'", true},
		{"filePath = 'it''s'", false},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			expr, err := filter.Parse(tt.src, testSchema)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.src, err)
			}
			if got := expr.Eval(sampleRow()); got != tt.want {
				t.Fatalf("Eval(%s) = %v, want %v", expr, got, tt.want)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	inputs := []string{
		"WHERE bogus = 1",
		"kbps > 'fast'",
		"kbps >",
		"(kbps > 1",
		"kbps > 1 extra",
		"filePath = 'unterminated",
		"kbps CONTAINS '1'",
		"instr(kbps, '1')",
		"videoCodecName NOT = 'x'",
		"videoCodecName IS EMPTY",
		"kbps ! 5",
		"frameHeight IN (720 1080)",
		"; DROP TABLE df",
	}
	for _, src := range inputs {
		t.Run(src, func(t *testing.T) {
			if _, err := filter.Parse(src, testSchema); !errors.Is(err, filter.ErrSyntax) {
				t.Fatalf("Parse(%q) error = %v, want ErrSyntax", src, err)
			}
		})
	}
}

func TestMentions(t *testing.T) {
	tests := []struct {
		src  string
		want bool
	}{
		{"fileSize > 100", true},
		{"videoCodecName = 'h264' AND NOT (fileSize < 10)", true},
		{"filePath LIKE '%fileSize%'", false},
		{"videoCodecName = 'h264'", false},
		{"", false},
	}
	for _, tt := range tests {
		expr, err := filter.Parse(tt.src, testSchema)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", tt.src, err)
		}
		if got := filter.Mentions(expr, "fileSize"); got != tt.want {
			t.Fatalf("Mentions(%q) = %v, want %v", tt.src, got, tt.want)
		}
	}
}

func TestAndAll(t *testing.T) {
	expr := filter.AndAll(filter.True{}, nil)
	if _, ok := expr.(filter.True); !ok {
		t.Fatalf("expected True for empty conjunction, got %T", expr)
	}

	size := filter.Compare{Field: "fileSize", Kind: filter.KindNumber, Op: filter.OpGt, Num: 5_000_000}
	codec := filter.Compare{Field: "videoCodecName", Kind: filter.KindString, Op: filter.OpEq, Str: "h264"}
	combined := filter.AndAll(codec, filter.True{}, size)
	if got := combined.String(); got != "(videoCodecName = 'h264' AND fileSize > 5000000)" {
		t.Fatalf("unexpected String(): %s", got)
	}
	if !combined.Eval(sampleRow()) {
		t.Fatal("expected combined predicate to match")
	}
}
