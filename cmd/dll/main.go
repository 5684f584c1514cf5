// Package main provides C-compatible exports for the bmg library.
// Build with: go build -buildmode=c-shared -o bmg.dll
package main

/*
#include <stdlib.h>
#include <stdint.h>

// Result structure for operations that return data
typedef struct {
    char* data;
    int   data_len;
    char* error;
} BmgResult;
*/
import "C"

import (
	"bytes"
	"encoding/json"
	"errors"
	"unsafe"

	bmg "github.com/logicossoftware/go-bmg"
)

func main() {}

// BmgPatchVersion returns the BMGP patch format version supported by this library.
//
//export BmgPatchVersion
func BmgPatchVersion() C.uint16_t {
	return C.uint16_t(bmg.PatchVersionV1)
}

// BmgFreeResult frees memory allocated by other Bmg functions.
// Must be called to avoid memory leaks.
//
//export BmgFreeResult
func BmgFreeResult(result C.BmgResult) {
	if result.data != nil {
		C.free(unsafe.Pointer(result.data))
	}
	if result.error != nil {
		C.free(unsafe.Pointer(result.error))
	}
}

// BmgFreeString frees a C string allocated by Go.
//
//export BmgFreeString
func BmgFreeString(s *C.char) {
	if s != nil {
		C.free(unsafe.Pointer(s))
	}
}

func makeResult(data []byte) C.BmgResult {
	var result C.BmgResult
	if len(data) > 0 {
		result.data = (*C.char)(C.CBytes(data))
		result.data_len = C.int(len(data))
	}
	return result
}

func makeError(err error) C.BmgResult {
	var result C.BmgResult
	result.error = C.CString(err.Error())
	return result
}

func parse(data *C.char, dataLen C.int) (*bmg.Container, error) {
	if data == nil || dataLen <= 0 {
		return nil, errors.New("bmg: empty input")
	}
	return bmg.Parse(C.GoBytes(unsafe.Pointer(data), dataLen))
}

type jsonString struct {
	Index       int    `json:"index"`
	MessageID   uint16 `json:"messageId,omitempty"`
	GroupID     uint16 `json:"groupId,omitempty"`
	Offset      uint32 `json:"offset"`
	Text        string `json:"text"`
	LeadingNull bool   `json:"leadingNull,omitempty"`
}

// BmgInspect parses a BMG container and returns a JSON summary.
// The JSON object contains: type, encoding, mode, entries, crossRefs, diagnostics.
//
// Returns BmgResult with the JSON string or error. Call BmgFreeResult when done.
//
//export BmgInspect
func BmgInspect(data *C.char, dataLen C.int) C.BmgResult {
	c, err := parse(data, dataLen)
	if err != nil {
		return makeError(err)
	}

	entries := make([]jsonString, 0, len(c.Entries()))
	for _, e := range c.Entries() {
		entries = append(entries, jsonString{
			Index: e.Index, MessageID: e.MessageID, GroupID: e.GroupID,
			Offset: e.Offset, Text: e.Text, LeadingNull: e.LeadingNull,
		})
	}
	crossRefs := make([]jsonString, 0, len(c.CrossRefs()))
	for _, x := range c.CrossRefs() {
		crossRefs = append(crossRefs, jsonString{
			Index: x.ID, Offset: x.Offset, Text: x.Text, LeadingNull: x.LeadingNull,
		})
	}
	diags := make([]string, 0)
	for _, d := range c.Diagnostics() {
		diags = append(diags, d.String())
	}

	jsonBytes, err := json.Marshal(map[string]any{
		"type":        c.Header().Type(),
		"encoding":    c.Header().Encoding.String(),
		"mode":        c.Mode().String(),
		"entries":     entries,
		"crossRefs":   crossRefs,
		"diagnostics": diags,
	})
	if err != nil {
		return makeError(err)
	}
	return makeResult(jsonBytes)
}

// BmgApplyPatch applies a BMGP patch to a container and returns the rebuilt bytes.
// Parameters:
//   - data, dataLen: the BMG container
//   - patch, patchLen: the BMGP patch
//   - ignoreSource: non-zero to skip the source fingerprint check
//
// Returns BmgResult with the rebuilt container or error. Call BmgFreeResult when done.
//
//export BmgApplyPatch
func BmgApplyPatch(data *C.char, dataLen C.int, patch *C.char, patchLen C.int, ignoreSource C.int) C.BmgResult {
	c, err := parse(data, dataLen)
	if err != nil {
		return makeError(err)
	}
	p, err := bmg.DecodePatch(bytes.NewReader(C.GoBytes(unsafe.Pointer(patch), patchLen)))
	if err != nil {
		return makeError(err)
	}
	if err := c.ApplyPatch(p, bmg.WithIgnoreSource(ignoreSource != 0)); err != nil {
		return makeError(err)
	}
	res, err := c.Build()
	if err != nil {
		return makeError(err)
	}
	return makeResult(res.Data)
}

// BmgSetEntryText replaces the text of one INF1 entry and returns the rebuilt container.
// Control codes are written as [XX] or [XX:YYYY] tokens.
//
//export BmgSetEntryText
func BmgSetEntryText(data *C.char, dataLen C.int, index C.int, text *C.char, leadingNull C.int) C.BmgResult {
	c, err := parse(data, dataLen)
	if err != nil {
		return makeError(err)
	}
	if err := c.SetText(bmg.EntryRef(int(index)), C.GoString(text), leadingNull != 0); err != nil {
		return makeError(err)
	}
	res, err := c.Build()
	if err != nil {
		return makeError(err)
	}
	return makeResult(res.Data)
}

// BmgRoundTrip parses and rebuilds a container without edits.
// Returns NULL when the rebuilt bytes equal the input, or an error message
// string otherwise. Call BmgFreeString on the result if non-NULL.
//
//export BmgRoundTrip
func BmgRoundTrip(data *C.char, dataLen C.int) *C.char {
	c, err := parse(data, dataLen)
	if err != nil {
		return C.CString(err.Error())
	}
	res, err := c.Build()
	if err != nil {
		return C.CString(err.Error())
	}
	if !bytes.Equal(res.Data, c.Bytes()) {
		return C.CString("bmg: rebuilt container differs from input")
	}
	return nil
}

// BmgGetEntryCount returns the number of INF1 entries. Returns -1 on error.
//
//export BmgGetEntryCount
func BmgGetEntryCount(data *C.char, dataLen C.int) C.int {
	c, err := parse(data, dataLen)
	if err != nil {
		return -1
	}
	return C.int(len(c.Entries()))
}
