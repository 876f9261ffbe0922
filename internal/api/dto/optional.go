package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Optional distinguishes a JSON key that was absent from one sent as null.
type Optional[T any] struct {
	Set   bool
	Value *T
}

// UnmarshalJSON is only invoked when the key is present.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// Code is an enum value sent either as its number or its name.
type Code string

// UnmarshalJSON accepts a JSON number or string.
func (c *Code) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Code(s)
		return nil
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("code must be an integer or a name: %s", data)
	}
	*c = Code(strconv.Itoa(n))
	return nil
}
