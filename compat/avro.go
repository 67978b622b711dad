package compat

import (
	"fmt"
	"slices"

	sg "github.com/reoring/schemaguard"
	"github.com/reoring/schemaguard/validator/avro"
)

// promotions lists, per writer primitive, the reader primitives that can
// read it under Avro schema resolution.
var promotions = map[string][]string{
	avro.Int:    {avro.Long, avro.Float, avro.Double},
	avro.Long:   {avro.Float, avro.Double},
	avro.Float:  {avro.Double},
	avro.String: {avro.Bytes},
	avro.Bytes:  {avro.String},
}

func diffAvro(reader, writer string) ([]sg.Violation, error) {
	r, err := avro.Parse(reader)
	if err != nil {
		return nil, err
	}
	w, err := avro.Parse(writer)
	if err != nil {
		return nil, err
	}
	d := &avroDiff{seen: make(map[[2]*avro.Schema]bool)}
	d.compare(r, w, r.Resolve().TypeName())
	return d.out, nil
}

type avroDiff struct {
	out []sg.Violation
	// seen breaks recursion through self-referencing records.
	seen map[[2]*avro.Schema]bool
}

func (d *avroDiff) add(v sg.Violation) { d.out = append(d.out, v) }

// matches reports whether data written as w can be read as r without
// descending into record fields.
func matches(r, w *avro.Schema) bool {
	r, w = r.Resolve(), w.Resolve()
	if r.Kind == avro.KindUnion {
		return slices.ContainsFunc(r.Branches, func(b *avro.Schema) bool { return matches(b, w) })
	}
	if w.Kind == avro.KindUnion {
		for _, b := range w.Branches {
			if !matches(r, b) {
				return false
			}
		}
		return true
	}
	if r.Kind != w.Kind {
		return false
	}
	switch r.Kind {
	case avro.KindPrimitive:
		return r.Primitive == w.Primitive || slices.Contains(promotions[w.Primitive], r.Primitive)
	case avro.KindRecord, avro.KindEnum, avro.KindFixed:
		return sameName(r, w)
	}
	return true
}

// sameName applies Avro's rule that named types match on their unqualified
// name or a reader alias.
func sameName(r, w *avro.Schema) bool {
	return r.Name == w.Name || r.HasAlias(w.FullName())
}

func (d *avroDiff) compare(rs, ws *avro.Schema, path string) {
	r, w := rs.Resolve(), ws.Resolve()
	key := [2]*avro.Schema{r, w}
	if d.seen[key] {
		return
	}
	d.seen[key] = true

	if w.Kind == avro.KindUnion {
		for _, wb := range w.Branches {
			rb := pickBranch(r, wb)
			if rb == nil {
				d.add(sg.Breaking("avro-union", sg.KindUnionTypesIncompatible, path,
					fmt.Sprintf("writer union branch %s has no matching reader type", wb.TypeName())).
					WithValues(wb.TypeName(), r.TypeName()))
				continue
			}
			d.compare(rb, wb, path)
		}
		return
	}
	if r.Kind == avro.KindUnion {
		rb := pickBranch(r, w)
		if rb == nil {
			d.add(sg.Breaking("avro-union", sg.KindUnionTypesIncompatible, path,
				fmt.Sprintf("writer type %s matches no branch of the reader union", w.TypeName())).
				WithValues(w.TypeName(), "union"))
			return
		}
		d.compare(rb, w, path)
		return
	}
	if r.Kind != w.Kind {
		d.add(sg.Breaking("avro-type", sg.KindTypeChanged, path,
			fmt.Sprintf("type changed from %s to %s", w.TypeName(), r.TypeName())).
			WithValues(w.TypeName(), r.TypeName()))
		return
	}

	switch r.Kind {
	case avro.KindPrimitive:
		if !matches(r, w) {
			d.add(sg.Breaking("avro-type", sg.KindTypeChanged, path,
				fmt.Sprintf("type changed from %s to %s, which is not a promotion", w.Primitive, r.Primitive)).
				WithValues(w.Primitive, r.Primitive))
		}
	case avro.KindRecord:
		d.compareNames(r, w, path)
		d.compareRecord(r, w, path)
	case avro.KindEnum:
		d.compareNames(r, w, path)
		d.compareEnum(r, w, path)
	case avro.KindFixed:
		d.compareNames(r, w, path)
		if r.Size != w.Size {
			d.add(sg.Breaking("avro-fixed-size", sg.KindTypeChanged, path,
				fmt.Sprintf("fixed size changed from %d to %d", w.Size, r.Size)).
				WithValues(fmt.Sprint(w.Size), fmt.Sprint(r.Size)))
		}
	case avro.KindArray:
		if !matches(r.Items, w.Items) {
			d.add(sg.Breaking("avro-array-items", sg.KindArrayItemsChanged, path+"[]",
				fmt.Sprintf("array items changed from %s to %s", w.Items.TypeName(), r.Items.TypeName())).
				WithValues(w.Items.TypeName(), r.Items.TypeName()))
			return
		}
		d.compare(r.Items, w.Items, path+"[]")
	case avro.KindMap:
		if !matches(r.Values, w.Values) {
			d.add(sg.Breaking("avro-map-values", sg.KindMapValueChanged, path+"{}",
				fmt.Sprintf("map values changed from %s to %s", w.Values.TypeName(), r.Values.TypeName())).
				WithValues(w.Values.TypeName(), r.Values.TypeName()))
			return
		}
		d.compare(r.Values, w.Values, path+"{}")
	}
}

// pickBranch returns the first reader union branch w resolves to, or r itself
// when r is not a union and matches.
func pickBranch(r, w *avro.Schema) *avro.Schema {
	if r.Kind != avro.KindUnion {
		if matches(r, w) {
			return r
		}
		return nil
	}
	// exact kind and name first, then promotions
	for _, b := range r.Branches {
		if b.TypeName() == w.TypeName() {
			return b
		}
	}
	for _, b := range r.Branches {
		if matches(b, w) {
			return b
		}
	}
	return nil
}

func (d *avroDiff) compareNames(r, w *avro.Schema, path string) {
	if sameName(r, w) {
		if r.Namespace != w.Namespace {
			d.add(sg.Warning("avro-namespace", sg.KindNamespaceChanged, path,
				fmt.Sprintf("namespace of %s changed from %q to %q", r.Name, w.Namespace, r.Namespace)).
				WithValues(w.Namespace, r.Namespace))
		}
		return
	}
	d.add(sg.Breaking("avro-name", sg.KindNameChanged, path,
		fmt.Sprintf("%s %s was renamed to %s without an alias", r.Kind, w.FullName(), r.FullName())).
		WithValues(w.FullName(), r.FullName()))
}

// writerField finds the writer field a reader field reads from, by name or
// reader alias.
func writerField(rf *avro.Field, w *avro.Schema) *avro.Field {
	if f, ok := w.Field(rf.Name); ok {
		return f
	}
	for _, a := range rf.Aliases {
		if f, ok := w.Field(a); ok {
			return f
		}
	}
	return nil
}

func (d *avroDiff) compareRecord(r, w *avro.Schema, path string) {
	read := make(map[string]bool, len(r.Fields))
	for _, rf := range r.Fields {
		fp := path + "." + rf.Name
		wf := writerField(rf, w)
		if wf == nil {
			if !rf.HasDefault {
				d.add(sg.Breaking("avro-missing-default", sg.KindRequiredAdded, fp,
					fmt.Sprintf("reader field '%s' is missing from the writer and has no default", rf.Name)))
			}
			continue
		}
		read[wf.Name] = true
		d.compare(rf.Type, wf.Type, fp)
	}
	for _, wf := range w.Fields {
		if read[wf.Name] {
			continue
		}
		fp := path + "." + wf.Name
		if wf.HasDefault {
			d.add(sg.Warning("avro-field-removed", sg.KindFieldRemoved, fp,
				fmt.Sprintf("writer field '%s' is ignored by the reader", wf.Name)))
			continue
		}
		d.add(sg.Breaking("avro-field-removed", sg.KindFieldRemoved, fp,
			fmt.Sprintf("field '%s' without a default was removed", wf.Name)))
	}
}

func (d *avroDiff) compareEnum(r, w *avro.Schema, path string) {
	if r.EnumDefault != nil {
		return
	}
	for _, s := range w.Symbols {
		if !slices.Contains(r.Symbols, s) {
			d.add(sg.Breaking("avro-enum-symbol", sg.KindEnumValueRemoved, path,
				fmt.Sprintf("symbol %s is missing from the reader enum, which has no default", s)).
				WithValues(s, ""))
		}
	}
}
