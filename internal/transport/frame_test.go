package transport_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/MrWong99/intervue/internal/transport"
)

func TestParseFrame(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		msg     string
		wantTS  float64
		wantPay []byte
		wantErr bool
	}{
		{name: "plain base64", msg: "12.5:aGVsbG8=", wantTS: 12.5, wantPay: []byte("hello")},
		{name: "integer timestamp", msg: "3:AQID", wantTS: 3, wantPay: []byte{1, 2, 3}},
		{name: "data url jpeg", msg: "1.25:data:image/jpeg;base64,aGVsbG8=", wantTS: 1.25, wantPay: []byte("hello")},
		{name: "data url png", msg: "0:data:image/png;base64,AQID", wantTS: 0, wantPay: []byte{1, 2, 3}},
		{name: "trailing newline", msg: "2:aGVsbG8=\n", wantTS: 2, wantPay: []byte("hello")},
		{name: "missing separator", msg: "aGVsbG8=", wantErr: true},
		{name: "bad timestamp", msg: "abc:aGVsbG8=", wantErr: true},
		{name: "nan timestamp", msg: "NaN:aGVsbG8=", wantErr: true},
		{name: "empty payload", msg: "1:", wantErr: true},
		{name: "bad base64", msg: "1:not*base64", wantErr: true},
		{name: "data url without base64", msg: "1:data:image/png,raw", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ts, payload, err := transport.ParseFrame(tt.msg)
			if tt.wantErr {
				if !errors.Is(err, transport.ErrMalformedFrame) {
					t.Fatalf("ParseFrame(%q) error = %v, want ErrMalformedFrame", tt.msg, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFrame(%q) error: %v", tt.msg, err)
			}
			if ts != tt.wantTS {
				t.Errorf("timestamp = %v, want %v", ts, tt.wantTS)
			}
			if !bytes.Equal(payload, tt.wantPay) {
				t.Errorf("payload = %v, want %v", payload, tt.wantPay)
			}
		})
	}
}
