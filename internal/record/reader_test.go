package record

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

const header = "event_time,event_type,product_id,category_id,category_code,brand,price,user_id,user_session\n"

func readAll(t *testing.T, input string, opts ReaderOptions) ([]Row, Stats) {
	t.Helper()
	r := NewReader(strings.NewReader(input), opts)
	var rows []Row
	if err := r.Each(func(row Row) error {
		rows = append(rows, row)
		return nil
	}); err != nil {
		t.Fatalf("Each() error = %v", err)
	}
	return rows, r.Stats()
}

func TestReader_DecodesNamedFields(t *testing.T) {
	input := header +
		"2019-10-01 00:00:00 UTC,view,1004237,2053013555631882655,electronics.smartphone,apple,1081.98,535871217,c6bd7419\n"

	rows, stats := readAll(t, input, ReaderOptions{Layout: DefaultLayout()})

	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	want := Row{
		ProductID:    "1004237",
		CategoryCode: "electronics.smartphone",
		Brand:        "apple",
		UserID:       "535871217",
	}
	if rows[0] != want {
		t.Errorf("row = %+v, want %+v", rows[0], want)
	}
	if stats.Headers != 1 || stats.Rows != 1 || stats.Records != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestReader_SkipsEmptyBrand(t *testing.T) {
	input := "t,view,P1,c,electronics,,1.0,U1,s\n" +
		"t,view,P2,c,electronics,acme,1.0,U1,s\n"

	rows, stats := readAll(t, input, ReaderOptions{Layout: DefaultLayout()})

	if len(rows) != 1 || rows[0].ProductID != "P2" {
		t.Fatalf("rows = %+v, want only P2", rows)
	}
	if stats.EmptyBrand != 1 {
		t.Errorf("EmptyBrand = %d, want 1", stats.EmptyBrand)
	}

	rows, stats = readAll(t, input, ReaderOptions{Layout: DefaultLayout(), KeepEmptyBrand: true})
	if len(rows) != 2 {
		t.Errorf("KeepEmptyBrand: got %d rows, want 2", len(rows))
	}
	if stats.EmptyBrand != 0 {
		t.Errorf("KeepEmptyBrand: EmptyBrand = %d, want 0", stats.EmptyBrand)
	}
}

func TestReader_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"too few fields", "t,view,P1,c,electronics\n"},
		{"empty product", "t,view,,c,electronics,acme,1.0,U1,s\n"},
		{"empty user", "t,view,P1,c,electronics,acme,1.0,,s\n"},
	}

	good := "t,view,P9,c,electronics,acme,1.0,U9,s\n"

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, stats := readAll(t, tt.input+good, ReaderOptions{Layout: DefaultLayout()})
			if len(rows) != 1 || rows[0].ProductID != "P9" {
				t.Errorf("rows = %+v, want only the good row", rows)
			}
			if stats.Malformed != 1 {
				t.Errorf("Malformed = %d, want 1", stats.Malformed)
			}

			r := NewReader(strings.NewReader(tt.input+good), ReaderOptions{Layout: DefaultLayout(), Strict: true})
			_, err := r.Next()
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("strict Next() error = %v, want ErrMalformed", err)
			}
			var merr *MalformedError
			if !errors.As(err, &merr) || merr.Line != 1 {
				t.Errorf("strict error = %#v, want line 1", err)
			}
		})
	}
}

func TestReader_HeaderOnlyOnFirstLine(t *testing.T) {
	// A header-shaped line later in the file is data, not a header.
	input := "t,view,P1,c,electronics,acme,1.0,U1,s\n" +
		"t,view,product_id,c,electronics,acme,1.0,user_id,s\n"

	rows, stats := readAll(t, input, ReaderOptions{Layout: DefaultLayout()})
	if len(rows) != 2 || stats.Headers != 0 {
		t.Errorf("got %d rows, %d headers; want 2, 0", len(rows), stats.Headers)
	}
}

func TestReader_CustomLayout(t *testing.T) {
	layout := Layout{ProductID: 0, CategoryCode: 1, Brand: 2, UserID: 3}
	rows, _ := readAll(t, "P1,kids.toys,lego,U1\n", ReaderOptions{Layout: layout})

	if len(rows) != 1 || rows[0].Brand != "lego" || rows[0].UserID != "U1" {
		t.Errorf("rows = %+v", rows)
	}
	if layout.MinFields() != 4 {
		t.Errorf("MinFields() = %d, want 4", layout.MinFields())
	}
}

func TestReader_Fields(t *testing.T) {
	r := NewReader(strings.NewReader("t,view,P1,c,electronics,acme,1.0,U1,s\n"), ReaderOptions{Layout: DefaultLayout()})
	if _, err := r.Next(); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(r.Fields(), ","); got != "t,view,P1,c,electronics,acme,1.0,U1,s" {
		t.Errorf("Fields() = %q", got)
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("Next() at end = %v, want io.EOF", err)
	}
}

func TestWriter_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.Write([]string{"t", "view", "P1", "c", "a,b", "acme", "1.0", "U1", "s"}); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	if w.Written() != 1 {
		t.Errorf("Written() = %d, want 1", w.Written())
	}

	rows, _ := readAll(t, buf.String(), ReaderOptions{Layout: DefaultLayout()})
	if len(rows) != 1 || rows[0].CategoryCode != "a,b" {
		t.Errorf("rows = %+v, want quoted category preserved", rows)
	}
}
