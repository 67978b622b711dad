package compat

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	jsonpatch "github.com/evanphx/json-patch"
	j "github.com/goccy/go-json"

	sg "github.com/reoring/schemaguard"
	"github.com/reoring/schemaguard/internal/jsontext"
)

// keywords the JSON Schema diff understands. A change under any other
// keyword is reported as unclassified.
var classified = map[string]bool{
	"type": true, "properties": true, "required": true, "additionalProperties": true,
	"items": true, "enum": true, "const": true, "pattern": true, "format": true,
	"multipleOf": true, "uniqueItems": true,
	"minimum": true, "maximum": true, "exclusiveMinimum": true, "exclusiveMaximum": true,
	"minLength": true, "maxLength": true, "minItems": true, "maxItems": true,
	"minProperties": true, "maxProperties": true, "minContains": true, "maxContains": true,
	// annotations
	"$schema": true, "$id": true, "id": true, "$comment": true, "title": true,
	"description": true, "default": true, "examples": true, "deprecated": true,
	"readOnly": true, "writeOnly": true, "$defs": true, "definitions": true,
}

type bound struct {
	key   string
	lower bool
}

var bounds = []bound{
	{"minimum", true}, {"exclusiveMinimum", true}, {"minLength", true}, {"minItems", true},
	{"minProperties", true}, {"minContains", true},
	{"maximum", false}, {"exclusiveMaximum", false}, {"maxLength", false}, {"maxItems", false},
	{"maxProperties", false}, {"maxContains", false},
}

func loadJSONSchema(text string) (any, error) {
	doc, err := jsontext.Decode([]byte(text), jsontext.Options{MaxDepth: sg.DefaultMaxRecursionDepth})
	if err != nil {
		return nil, err
	}
	root := doc.Value
	if m, ok := root.(map[string]any); ok {
		root = resolveOne(m, localDefs(m), map[string]bool{})
	} else if _, ok := root.(bool); !ok {
		return nil, fmt.Errorf("root must be an object or boolean, got %s", jsontext.TypeName(root))
	}
	return root, nil
}

// diffJSONSchema lists what breaks when data written with writer is read
// by reader.
func diffJSONSchema(reader, writer string) ([]sg.Violation, error) {
	r, err := loadJSONSchema(reader)
	if err != nil {
		return nil, err
	}
	w, err := loadJSONSchema(writer)
	if err != nil {
		return nil, err
	}
	d := &jsonDiff{}
	d.compare(r, w, "")
	if err := d.unclassified(r, w); err != nil {
		return nil, err
	}
	return d.out, nil
}

type jsonDiff struct {
	out []sg.Violation
}

func (d *jsonDiff) add(v sg.Violation) { d.out = append(d.out, v) }

func asSchema(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case bool:
		if t {
			return map[string]any{}, true
		}
		return nil, false
	}
	return map[string]any{}, true
}

func ptr(base string, tokens ...string) string {
	for _, t := range tokens {
		base = jsontext.Join(base, t)
	}
	return base
}

func (d *jsonDiff) compare(rv, wv any, path string) {
	r, rOpen := asSchema(rv)
	w, wOpen := asSchema(wv)
	if !wOpen {
		return
	}
	if !rOpen {
		d.add(sg.Breaking("json-schema-type", sg.KindTypeChanged, orRoot(path),
			"reader schema is false and rejects every value"))
		return
	}
	d.compareType(r, w, path)
	d.compareConstraints(r, w, path)
	d.compareEnum(r, w, path)
	d.compareProperties(r, w, path)
	d.compareItems(r, w, path)
}

func orRoot(p string) string {
	if p == "" {
		return "/"
	}
	return p
}

func typeSet(s map[string]any) []string {
	switch t := s["type"].(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, x := range t {
			if name, ok := x.(string); ok {
				out = append(out, name)
			}
		}
		return out
	}
	return nil
}

func accepts(readerTypes []string, t string) bool {
	if slices.Contains(readerTypes, t) {
		return true
	}
	return t == "integer" && slices.Contains(readerTypes, "number")
}

func (d *jsonDiff) compareType(r, w map[string]any, path string) {
	rt := typeSet(r)
	if rt == nil {
		return
	}
	wt := typeSet(w)
	old, neu := strings.Join(wt, ","), strings.Join(rt, ",")
	if wt == nil {
		d.add(sg.Breaking("json-schema-type", sg.KindTypeChanged, ptr(path, "type"),
			fmt.Sprintf("reader restricts type to %s where writer allowed any type", neu)).WithValues("any", neu))
		return
	}
	for _, t := range wt {
		if !accepts(rt, t) {
			d.add(sg.Breaking("json-schema-type", sg.KindTypeChanged, ptr(path, "type"),
				fmt.Sprintf("type changed from %s to %s", old, neu)).WithValues(old, neu))
			return
		}
	}
}

func (d *jsonDiff) compareConstraints(r, w map[string]any, path string) {
	for _, b := range bounds {
		rv, ok := jsontext.Float(r[b.key])
		if !ok {
			continue
		}
		wv, had := jsontext.Float(w[b.key])
		tightened := !had || (b.lower && rv > wv) || (!b.lower && rv < wv)
		if !tightened {
			continue
		}
		desc := fmt.Sprintf("%s added", b.key)
		old := ""
		if had {
			desc = fmt.Sprintf("%s tightened from %v to %v", b.key, wv, rv)
			old = fmt.Sprint(wv)
		}
		d.add(sg.Breaking("json-schema-constraint", sg.KindConstraintAdded, ptr(path, b.key), desc).
			WithValues(old, fmt.Sprint(rv)))
	}
	if rm, ok := jsontext.Float(r["multipleOf"]); ok && rm > 0 {
		wm, had := jsontext.Float(w["multipleOf"])
		if !had || !isMultiple(wm, rm) {
			d.add(sg.Breaking("json-schema-constraint", sg.KindConstraintAdded, ptr(path, "multipleOf"),
				fmt.Sprintf("multipleOf %v is stricter than the writer's", rm)))
		}
	}
	for _, key := range []string{"pattern", "format"} {
		rs, ok := r[key].(string)
		if !ok {
			continue
		}
		if ws, _ := w[key].(string); ws != rs {
			d.add(sg.Breaking("json-schema-constraint", sg.KindConstraintAdded, ptr(path, key),
				fmt.Sprintf("%s changed to %q", key, rs)).WithValues(ws, rs))
		}
	}
	if rc, ok := r["const"]; ok {
		if wc, had := w["const"]; !had || !jsontext.Equal(rc, wc) {
			d.add(sg.Breaking("json-schema-constraint", sg.KindConstraintAdded, ptr(path, "const"),
				"const added or changed"))
		}
	}
	if r["uniqueItems"] == true && w["uniqueItems"] != true {
		d.add(sg.Breaking("json-schema-constraint", sg.KindConstraintAdded, ptr(path, "uniqueItems"),
			"uniqueItems added"))
	}
}

// isMultiple reports whether every multiple of w is a multiple of r.
func isMultiple(w, r float64) bool {
	if w <= 0 {
		return false
	}
	q := w / r
	return q == float64(int64(q))
}

func (d *jsonDiff) compareEnum(r, w map[string]any, path string) {
	re, ok := r["enum"].([]any)
	if !ok {
		return
	}
	we, had := w["enum"].([]any)
	if !had {
		d.add(sg.Breaking("json-schema-enum", sg.KindConstraintAdded, ptr(path, "enum"), "enum added"))
		return
	}
	for _, v := range we {
		found := slices.ContainsFunc(re, func(x any) bool { return jsontext.Equal(x, v) })
		if !found {
			b, _ := j.Marshal(v)
			d.add(sg.Breaking("json-schema-enum", sg.KindEnumValueRemoved, ptr(path, "enum"),
				fmt.Sprintf("enum value %s removed", b)).WithValues(string(b), ""))
		}
	}
}

func requiredSet(s map[string]any) map[string]bool {
	out := make(map[string]bool)
	if arr, ok := s["required"].([]any); ok {
		for _, x := range arr {
			if name, ok := x.(string); ok {
				out[name] = true
			}
		}
	}
	return out
}

func (d *jsonDiff) compareProperties(r, w map[string]any, path string) {
	rp, _ := r["properties"].(map[string]any)
	wp, _ := w["properties"].(map[string]any)
	rreq, wreq := requiredSet(r), requiredSet(w)
	closed := r["additionalProperties"] == false

	for _, name := range jsontext.SortedKeys(wp) {
		fp := ptr(path, "properties", name)
		rs, ok := rp[name]
		if ok {
			d.compare(rs, wp[name], fp)
			continue
		}
		switch {
		case closed:
			d.add(sg.Breaking("json-schema-field-removed", sg.KindFieldRemoved, fp,
				fmt.Sprintf("field '%s' is rejected by a reader that disallows additional properties", name)))
		case wreq[name]:
			d.add(sg.Breaking("json-schema-field-removed", sg.KindFieldRemoved, fp,
				fmt.Sprintf("required field '%s' was removed", name)))
		default:
			d.add(sg.Warning("json-schema-field-removed", sg.KindFieldRemoved, fp,
				fmt.Sprintf("optional field '%s' is not declared by the reader", name)))
		}
	}

	for _, name := range slices.Sorted(maps.Keys(rreq)) {
		if wreq[name] {
			continue
		}
		if ps, ok := rp[name].(map[string]any); ok {
			if _, hasDefault := ps["default"]; hasDefault {
				continue
			}
		}
		fp := ptr(path, "properties", name)
		if _, existed := wp[name]; existed {
			d.add(sg.Breaking("json-schema-required", sg.KindFieldMadeRequired, fp,
				fmt.Sprintf("field '%s' became required", name)))
		} else {
			d.add(sg.Breaking("json-schema-required", sg.KindRequiredAdded, fp,
				fmt.Sprintf("required field '%s' was added without a default", name)))
		}
	}

	ra, wa := r["additionalProperties"], w["additionalProperties"]
	switch {
	case closed && wa != false:
		d.add(sg.Breaking("json-schema-additional-properties", sg.KindConstraintAdded, ptr(path, "additionalProperties"),
			"reader closed additionalProperties"))
	case isMap(ra) && wa != false:
		d.compare(ra, wa, ptr(path, "additionalProperties"))
	}
}

func (d *jsonDiff) compareItems(r, w map[string]any, path string) {
	ri, ok := r["items"].(map[string]any)
	if !ok {
		return
	}
	wi, had := w["items"]
	if !had {
		if len(ri) > 0 {
			d.add(sg.Breaking("json-schema-items", sg.KindArrayItemsChanged, ptr(path, "items"),
				"reader constrains array items the writer left open"))
		}
		return
	}
	if _, tuple := wi.([]any); tuple {
		d.add(sg.Breaking("json-schema-items", sg.KindArrayItemsChanged, ptr(path, "items"),
			"array items changed between tuple and list form"))
		return
	}
	d.compare(ri, wi, ptr(path, "items"))
}

func isMap(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

// unclassified computes a merge patch from writer to reader and flags every
// changed keyword the rules above do not understand.
func (d *jsonDiff) unclassified(r, w any) error {
	rb, err := j.Marshal(r)
	if err != nil {
		return err
	}
	wb, err := j.Marshal(w)
	if err != nil {
		return err
	}
	patchBytes, err := jsonpatch.CreateMergePatch(wb, rb)
	if err != nil {
		// non-object roots; the boolean case is already handled by compare
		return nil
	}
	var patch map[string]any
	if err := j.Unmarshal(patchBytes, &patch); err != nil {
		return err
	}
	rm, _ := r.(map[string]any)
	wm, _ := w.(map[string]any)
	d.walkPatch(patch, rm, wm, "")
	return nil
}

func (d *jsonDiff) walkPatch(patch, r, w map[string]any, path string) {
	for _, key := range jsontext.SortedKeys(patch) {
		switch key {
		case "properties":
			changed, _ := patch[key].(map[string]any)
			rp, _ := r["properties"].(map[string]any)
			wp, _ := w["properties"].(map[string]any)
			for _, name := range jsontext.SortedKeys(changed) {
				sub, ok := changed[name].(map[string]any)
				rs, rok := rp[name].(map[string]any)
				ws, wok := wp[name].(map[string]any)
				if ok && rok && wok {
					d.walkPatch(sub, rs, ws, ptr(path, "properties", name))
				}
			}
			continue
		case "items", "additionalProperties":
			sub, ok := patch[key].(map[string]any)
			rs, rok := r[key].(map[string]any)
			ws, wok := w[key].(map[string]any)
			if ok && rok && wok {
				d.walkPatch(sub, rs, ws, ptr(path, key))
			}
			continue
		}
		if classified[key] || strings.HasPrefix(key, "x-") {
			continue
		}
		d.add(sg.Breaking("json-schema-unclassified", sg.KindUnclassified, ptr(path, key),
			fmt.Sprintf("change to '%s' cannot be classified and is treated as breaking", key)))
	}
}
