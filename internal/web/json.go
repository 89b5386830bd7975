package web

import (
	"encoding/json"
)

// TareJSON is the response body of the tare endpoint.
type TareJSON struct {
	Tare TareInner `json:"tare"`
}

// TareInner contains the tare result. On failure Offset is the offset still
// in effect.
type TareInner struct {
	OK     bool   `json:"ok"`
	Offset int64  `json:"offset"`
	Error  string `json:"error,omitempty"`
}

func formatTare(offset int64, err error) []byte {
	tj := TareJSON{Tare: TareInner{OK: err == nil, Offset: offset}}
	if err != nil {
		tj.Tare.Error = err.Error()
	}
	data, _ := json.Marshal(tj)
	return data
}
