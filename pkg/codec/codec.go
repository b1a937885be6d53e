// Package codec implements the node's single symmetric serialization
// envelope: UTF-8 JSON, gzip-compressed, base64-encoded. It is used
// uniformly for chain snapshots, wire messages, and contract state
// (spec §4.1), the same way the teacher's ledger package reaches for
// encoding/json + compress/gzip when writing snapshots and archives.
package codec

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"io"

	"smartxchain/pkg/errs"
)

// Encode serializes v to the envelope: json -> gzip -> base64 (URL-safe,
// unpadded so the result is also safe inside query strings and filenames).
func Encode(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", errs.Wrap(errs.KindCodecFailed, "marshal json", err)
	}

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(raw); err != nil {
		return "", errs.Wrap(errs.KindCodecFailed, "gzip compress", err)
	}
	if err := gw.Close(); err != nil {
		return "", errs.Wrap(errs.KindCodecFailed, "gzip close", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

// Decode reverses Encode, unmarshaling the result into out (which must be a
// pointer). All three failure modes (malformed base64, decompression, JSON
// parse) return errs.KindCodecFailed; only the wrapped message tells them
// apart, they do not carry distinct error kinds.
func Decode(s string, out any) error {
	compressed, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return errs.Wrap(errs.KindCodecFailed, "malformed base64", err)
	}

	gr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return errs.Wrap(errs.KindCodecFailed, "decompress", err)
	}
	defer gr.Close()

	raw, err := io.ReadAll(gr)
	if err != nil {
		return errs.Wrap(errs.KindCodecFailed, "decompress", err)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return errs.Wrap(errs.KindCodecFailed, "parse json", err)
	}
	return nil
}
