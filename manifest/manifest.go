// Package manifest decodes preload manifests.
//
// A manifest is a JSON array of {"source", "destination"} objects, or an
// array of such arrays, which is flattened one level:
//
//	[
//	  {"source": "$QTDIR/plugins/platforms/libqwasm.so", "destination": "/qt/plugins/platforms/libqwasm.so"},
//	  [{"source": "$QTDIR/qml/QtQuick/qmldir", "destination": "/qt/qml/QtQuick/qmldir"}]
//	]
package manifest

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/wippyai/qtwasm-loader/errors"
)

// QtDirPlaceholder is replaced by the configured Qt root in entry sources.
const QtDirPlaceholder = "$QTDIR"

// Entry is a single file to preload.
type Entry struct {
	Source      string
	Destination string
}

// ResolveSource returns Source with the first $QTDIR replaced by qtdir.
func (e Entry) ResolveSource(qtdir string) string {
	return strings.Replace(e.Source, QtDirPlaceholder, qtdir, 1)
}

// Split returns the destination's parent directory and file name.
func (e Entry) Split() (dir, name string) {
	i := strings.LastIndexByte(e.Destination, '/')
	if i < 0 {
		return "", e.Destination
	}
	return e.Destination[:i], e.Destination[i+1:]
}

// Parse decodes a manifest document.
func Parse(data []byte) ([]Entry, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.InvalidData(errors.PhasePreload, nil, "manifest is not valid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, errors.InvalidData(errors.PhasePreload, nil, "manifest must be an array")
	}

	var entries []Entry
	for i, item := range root.Array() {
		idx := strconv.Itoa(i)
		if item.IsArray() {
			for j, nested := range item.Array() {
				e, err := decodeEntry(nested, idx, strconv.Itoa(j))
				if err != nil {
					return nil, err
				}
				entries = append(entries, e)
			}
			continue
		}
		e, err := decodeEntry(item, idx)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func decodeEntry(v gjson.Result, path ...string) (Entry, error) {
	if !v.IsObject() {
		return Entry{}, errors.InvalidData(errors.PhasePreload, path, "entry must be an object")
	}
	src := v.Get("source")
	dst := v.Get("destination")
	if src.Type != gjson.String || dst.Type != gjson.String {
		return Entry{}, errors.InvalidData(errors.PhasePreload, path, "entry needs string source and destination")
	}
	return Entry{Source: src.String(), Destination: dst.String()}, nil
}
