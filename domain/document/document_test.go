package document_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/artpar/shapekit/core/jsoncodec"
	"github.com/artpar/shapekit/core/runtime"
	"github.com/artpar/shapekit/core/shape"
	"github.com/artpar/shapekit/domain/document"
)

var tagged = shape.MustRecord("Tagged",
	shape.F("name", shape.String),
	shape.F("tags", shape.SetOf(shape.String)),
	shape.F("note", shape.String.Apply(shape.Optional())),
)

func TestComputeDigest(t *testing.T) {
	for _, alg := range []document.Algorithm{document.Blake2b, document.Blake3} {
		d, err := document.ComputeDigest(alg, []byte("hello"))
		if err != nil {
			t.Fatalf("ComputeDigest(%s) error = %v", alg, err)
		}
		if d.Algorithm() != alg {
			t.Errorf("Algorithm() = %s, want %s", d.Algorithm(), alg)
		}
		if !strings.HasPrefix(string(d), string(alg)+":") || len(d) != len(alg)+1+64 {
			t.Errorf("digest = %s", d)
		}
		if err := d.Verify([]byte("hello")); err != nil {
			t.Errorf("Verify() error = %v", err)
		}
		if err := d.Verify([]byte("hellp")); !errors.Is(err, document.ErrCorrupt) {
			t.Errorf("Verify(tampered) error = %v, want ErrCorrupt", err)
		}
	}

	b2, _ := document.ComputeDigest(document.Blake2b, []byte("x"))
	b3, _ := document.ComputeDigest(document.Blake3, []byte("x"))
	if b2 == b3 {
		t.Error("different algorithms should produce different digests")
	}

	if _, err := document.ComputeDigest("md5", nil); err == nil {
		t.Error("expected error for unknown algorithm")
	}
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in      string
		want    document.Algorithm
		wantErr bool
	}{
		{"", document.Blake2b, false},
		{"blake2b", document.Blake2b, false},
		{"blake3", document.Blake3, false},
		{"sha1", "", true},
	}
	for _, tt := range tests {
		got, err := document.ParseAlgorithm(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseAlgorithm(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestCompress_RoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("shape shape shape "), 64)

	for _, c := range []document.Compression{document.CompressionNone, document.CompressionLZ4, document.CompressionZstd} {
		t.Run(c.String(), func(t *testing.T) {
			out, used, err := document.Compress(data, c)
			if err != nil {
				t.Fatalf("Compress() error = %v", err)
			}
			if used != c {
				t.Errorf("used = %s, want %s", used, c)
			}
			if c != document.CompressionNone && len(out) >= len(data) {
				t.Errorf("compressed %d bytes into %d", len(data), len(out))
			}
			back, err := document.Decompress(out, used, len(data))
			if err != nil {
				t.Fatalf("Decompress() error = %v", err)
			}
			if !bytes.Equal(back, data) {
				t.Error("round trip changed data")
			}
		})
	}
}

func TestCompress_Incompressible(t *testing.T) {
	data := []byte{0x01}
	out, used, err := document.Compress(data, document.CompressionZstd)
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}
	if used != document.CompressionNone || !bytes.Equal(out, data) {
		t.Errorf("Compress(tiny) = %v, %s, want data unchanged and none", out, used)
	}
}

func TestParseCompression(t *testing.T) {
	for name, want := range map[string]document.Compression{
		"":     document.CompressionNone,
		"none": document.CompressionNone,
		"lz4":  document.CompressionLZ4,
		"zstd": document.CompressionZstd,
	} {
		got, err := document.ParseCompression(name)
		if err != nil || got != want {
			t.Errorf("ParseCompression(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := document.ParseCompression("gzip"); err == nil {
		t.Error("expected error for gzip")
	}
}

func TestEncode_DigestIgnoresSetOrder(t *testing.T) {
	m := jsoncodec.For(tagged)

	a := runtime.Record{"name": "n", "tags": runtime.NewHashSet(shape.String, "x", "y", "z")}
	b := runtime.Record{"name": "n", "tags": runtime.NewHashSet(shape.String, "z", "y", "x")}

	ea, err := document.Encode(m, a, document.EncodeOptions{})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	eb, err := document.Encode(m, b, document.EncodeOptions{Compression: document.CompressionZstd})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if ea.Digest != eb.Digest {
		t.Errorf("digests differ for equal values: %s vs %s", ea.Digest, eb.Digest)
	}
	if ea.Digest.Algorithm() != document.Blake2b {
		t.Errorf("default digest algorithm = %s, want blake2b", ea.Digest.Algorithm())
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	m := jsoncodec.For(tagged)
	value := runtime.Record{
		"name": strings.Repeat("long name ", 20),
		"tags": runtime.NewHashSet(shape.String, "a", "b"),
	}

	opts := []document.EncodeOptions{
		{},
		{Digest: document.Blake3, Compression: document.CompressionLZ4},
		{Compression: document.CompressionZstd},
	}
	for _, o := range opts {
		body, err := document.Encode(m, value, o)
		if err != nil {
			t.Fatalf("Encode(%+v) error = %v", o, err)
		}
		back, err := document.Decode(m, body)
		if err != nil {
			t.Fatalf("Decode(%+v) error = %v", o, err)
		}
		if !runtime.Equals(tagged)(value, back) {
			t.Errorf("Decode(%+v) = %v, want %v", o, back, value)
		}
	}
}

func TestDecode_Corrupt(t *testing.T) {
	m := jsoncodec.For(tagged)
	body, err := document.Encode(m, runtime.Record{"name": "n", "tags": runtime.NewHashSet(shape.String)}, document.EncodeOptions{})
	if err != nil {
		t.Fatal(err)
	}

	body.Data = append([]byte(nil), body.Data...)
	body.Data[len(body.Data)-1] ^= 0xff
	if _, err := document.Decode(m, body); !errors.Is(err, document.ErrCorrupt) {
		t.Errorf("Decode(tampered) error = %v, want ErrCorrupt", err)
	}
}

func TestCanonical(t *testing.T) {
	s := shape.MapOf(shape.SetOf(shape.Number))
	wire := map[string]any{"k": []any{3.0, 1.0, 2.0}}

	got, err := document.Canonical(s, wire)
	if err != nil {
		t.Fatalf("Canonical() error = %v", err)
	}
	members := got.(map[string]any)["k"].([]any)
	for i, want := range []float64{1, 2, 3} {
		if members[i] != want {
			t.Errorf("members[%d] = %v, want %v", i, members[i], want)
		}
	}

	if _, err := document.Canonical(tagged, map[string]any{}); err == nil {
		t.Error("Canonical(record) should require a jsoncodec.Object")
	}
}
