package compat

import (
	"fmt"
	"slices"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/types/descriptorpb"

	sg "github.com/reoring/schemaguard"
	"github.com/reoring/schemaguard/validator/protobuf"
)

type fieldDesc = descriptorpb.FieldDescriptorProto

// wire-compatible scalar groups; a type change inside a group keeps the
// encoding readable.
var typeGroups = map[descriptorpb.FieldDescriptorProto_Type]int{
	descriptorpb.FieldDescriptorProto_TYPE_INT32:    1,
	descriptorpb.FieldDescriptorProto_TYPE_UINT32:   1,
	descriptorpb.FieldDescriptorProto_TYPE_INT64:    1,
	descriptorpb.FieldDescriptorProto_TYPE_UINT64:   1,
	descriptorpb.FieldDescriptorProto_TYPE_BOOL:     1,
	descriptorpb.FieldDescriptorProto_TYPE_ENUM:     1,
	descriptorpb.FieldDescriptorProto_TYPE_SINT32:   2,
	descriptorpb.FieldDescriptorProto_TYPE_SINT64:   2,
	descriptorpb.FieldDescriptorProto_TYPE_STRING:   3,
	descriptorpb.FieldDescriptorProto_TYPE_BYTES:    3,
	descriptorpb.FieldDescriptorProto_TYPE_FIXED32:  4,
	descriptorpb.FieldDescriptorProto_TYPE_SFIXED32: 4,
	descriptorpb.FieldDescriptorProto_TYPE_FIXED64:  5,
	descriptorpb.FieldDescriptorProto_TYPE_SFIXED64: 5,
}

// diffProtobuf compares two .proto files message by message. readerIsNew
// tells which side is the later version, which decides whether a missing
// message, enum value or reserved number is a removal or an addition.
func diffProtobuf(reader, writer string, readerIsNew bool) ([]sg.Violation, error) {
	rfd, err := protobuf.ParseDescriptor(reader)
	if err != nil {
		return nil, err
	}
	wfd, err := protobuf.ParseDescriptor(writer)
	if err != nil {
		return nil, err
	}
	d := &protoDiff{
		r:           protobuf.NewRegistry(rfd),
		w:           protobuf.NewRegistry(wfd),
		readerIsNew: readerIsNew,
	}
	d.messages()
	d.enums()
	return d.out, nil
}

type protoDiff struct {
	r, w        *protobuf.Registry
	readerIsNew bool
	out         []sg.Violation
}

func (d *protoDiff) add(v sg.Violation) { d.out = append(d.out, v) }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func displayName(full string) string { return strings.TrimPrefix(full, ".") }

func (d *protoDiff) messages() {
	for _, name := range sortedKeys(d.w.Messages) {
		wm := d.w.Messages[name]
		rm, ok := d.r.Messages[name]
		if !ok {
			if d.readerIsNew && !wm.GetOptions().GetMapEntry() {
				d.add(sg.Breaking("protobuf-message-removed", sg.KindFieldRemoved, displayName(name),
					fmt.Sprintf("message %s was removed", displayName(name))))
			}
			continue
		}
		d.message(displayName(name), rm, wm)
	}
}

func (d *protoDiff) message(path string, rm, wm *descriptorpb.DescriptorProto) {
	rByNum := make(map[int32]*fieldDesc, len(rm.GetField()))
	for _, f := range rm.GetField() {
		rByNum[f.GetNumber()] = f
	}
	wByNum := make(map[int32]*fieldDesc, len(wm.GetField()))
	for _, f := range wm.GetField() {
		wByNum[f.GetNumber()] = f
	}

	for _, wf := range wm.GetField() {
		fp := path + "." + wf.GetName()
		rf, ok := rByNum[wf.GetNumber()]
		if !ok {
			d.writerOnly(path, rm, wf)
			continue
		}
		if rf.GetName() != wf.GetName() {
			if d.typesCompatible(rf, wf) {
				d.add(sg.Warning("protobuf-field-renamed", sg.KindNameChanged, path+"."+rf.GetName(),
					fmt.Sprintf("field %d was renamed from '%s' to '%s'", wf.GetNumber(), wf.GetName(), rf.GetName())).
					WithValues(wf.GetName(), rf.GetName()))
			} else {
				d.add(sg.Breaking("protobuf-field-number-reused", sg.KindFieldNumberReused, path+"."+rf.GetName(),
					fmt.Sprintf("field number %d was '%s' (%s) and is now '%s' (%s)", wf.GetNumber(),
						wf.GetName(), typeName(wf), rf.GetName(), typeName(rf))).
					WithValues(typeName(wf), typeName(rf)))
			}
			continue
		}
		d.field(fp, rf, wf)
	}

	for _, rf := range rm.GetField() {
		if _, ok := wByNum[rf.GetNumber()]; ok {
			continue
		}
		if rf.GetLabel() == descriptorpb.FieldDescriptorProto_LABEL_REQUIRED {
			d.add(sg.Breaking("protobuf-required-added", sg.KindRequiredAdded, path+"."+rf.GetName(),
				fmt.Sprintf("required field '%s' is not written by the writer", rf.GetName())))
		}
	}

	newer, older := rm, wm
	if !d.readerIsNew {
		newer, older = wm, rm
	}
	for _, f := range newer.GetField() {
		switch {
		case reservesNumber(older, f.GetNumber()):
			d.add(sg.Breaking("protobuf-reserved-reused", sg.KindReservedReused, path+"."+f.GetName(),
				fmt.Sprintf("field '%s' uses number %d, which was reserved", f.GetName(), f.GetNumber())).
				WithValues("", fmt.Sprint(f.GetNumber())))
		case slices.Contains(older.GetReservedName(), f.GetName()):
			d.add(sg.Breaking("protobuf-reserved-reused", sg.KindReservedReused, path+"."+f.GetName(),
				fmt.Sprintf("field name '%s' was reserved", f.GetName())))
		}
	}
}

// writerOnly handles a writer field the reader no longer declares.
func (d *protoDiff) writerOnly(path string, rm *descriptorpb.DescriptorProto, wf *fieldDesc) {
	if !d.readerIsNew {
		// added by the newer writer; older readers skip unknown numbers
		return
	}
	fp := path + "." + wf.GetName()
	switch {
	case wf.GetLabel() == descriptorpb.FieldDescriptorProto_LABEL_REQUIRED:
		d.add(sg.Breaking("protobuf-field-removed", sg.KindFieldRemoved, fp,
			fmt.Sprintf("required field '%s' (%d) was removed", wf.GetName(), wf.GetNumber())))
	case reservesNumber(rm, wf.GetNumber()):
		d.add(sg.Info("protobuf-field-removed", sg.KindFieldRemoved, fp,
			fmt.Sprintf("field '%s' was removed and its number %d reserved", wf.GetName(), wf.GetNumber())))
	default:
		d.add(sg.Warning("protobuf-field-removed", sg.KindFieldRemoved, fp,
			fmt.Sprintf("field '%s' (%d) is not declared by the reader and its number is not reserved",
				wf.GetName(), wf.GetNumber())))
	}
}

func (d *protoDiff) field(fp string, rf, wf *fieldDesc) {
	if !d.typesCompatible(rf, wf) {
		d.add(sg.Breaking("protobuf-type-changed", sg.KindTypeChanged, fp,
			fmt.Sprintf("type changed from %s to %s", typeName(wf), typeName(rf))).
			WithValues(typeName(wf), typeName(rf)))
		return
	}
	if rf.GetLabel() == descriptorpb.FieldDescriptorProto_LABEL_REQUIRED &&
		wf.GetLabel() != descriptorpb.FieldDescriptorProto_LABEL_REQUIRED {
		d.add(sg.Breaking("protobuf-field-made-required", sg.KindFieldMadeRequired, fp,
			fmt.Sprintf("field '%s' became required", rf.GetName())))
	}
	rRep := rf.GetLabel() == descriptorpb.FieldDescriptorProto_LABEL_REPEATED
	wRep := wf.GetLabel() == descriptorpb.FieldDescriptorProto_LABEL_REPEATED
	if rRep != wRep {
		rw, ww := d.wireType(rf, d.r), d.wireType(wf, d.w)
		if rw != ww {
			d.add(sg.Breaking("protobuf-cardinality", sg.KindTypeChanged, fp,
				fmt.Sprintf("field '%s' changed between repeated and singular with a different wire encoding", rf.GetName())))
		} else {
			d.add(sg.Warning("protobuf-cardinality", sg.KindTypeChanged, fp,
				fmt.Sprintf("field '%s' changed between repeated and singular", rf.GetName())))
		}
	}
	if inOneof(rf) != inOneof(wf) {
		d.add(sg.Breaking("protobuf-oneof", sg.KindUnclassified, fp,
			fmt.Sprintf("field '%s' moved into or out of a oneof", rf.GetName())))
	}
}

func inOneof(f *fieldDesc) bool { return f.OneofIndex != nil && !f.GetProto3Optional() }

func (d *protoDiff) typesCompatible(rf, wf *fieldDesc) bool {
	rt, wt := rf.GetType(), wf.GetType()
	if rt == wt {
		switch rt {
		case descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, descriptorpb.FieldDescriptorProto_TYPE_GROUP:
			return d.sameMessage(rf.GetTypeName(), wf.GetTypeName())
		}
		return true
	}
	rg, rok := typeGroups[rt]
	wg, wok := typeGroups[wt]
	return rok && wok && rg == wg
}

// sameMessage compares message types by name; map entries compare their key
// and value types since protoc derives the entry name from the field.
func (d *protoDiff) sameMessage(rName, wName string) bool {
	rm, rok := d.r.Messages[rName]
	wm, wok := d.w.Messages[wName]
	if rok && wok && rm.GetOptions().GetMapEntry() && wm.GetOptions().GetMapEntry() {
		rk, rv := rm.GetField()[0], rm.GetField()[1]
		wk, wv := wm.GetField()[0], wm.GetField()[1]
		return rk.GetType() == wk.GetType() && d.typesCompatible(rv, wv)
	}
	return displayName(rName) == displayName(wName)
}

// wireType is the wire encoding of the field as serialized; repeated
// numeric scalars are packed in proto3.
func (d *protoDiff) wireType(f *fieldDesc, reg *protobuf.Registry) protowire.Type {
	var t protowire.Type
	switch f.GetType() {
	case descriptorpb.FieldDescriptorProto_TYPE_DOUBLE, descriptorpb.FieldDescriptorProto_TYPE_FIXED64,
		descriptorpb.FieldDescriptorProto_TYPE_SFIXED64:
		t = protowire.Fixed64Type
	case descriptorpb.FieldDescriptorProto_TYPE_FLOAT, descriptorpb.FieldDescriptorProto_TYPE_FIXED32,
		descriptorpb.FieldDescriptorProto_TYPE_SFIXED32:
		t = protowire.Fixed32Type
	case descriptorpb.FieldDescriptorProto_TYPE_STRING, descriptorpb.FieldDescriptorProto_TYPE_BYTES,
		descriptorpb.FieldDescriptorProto_TYPE_MESSAGE:
		return protowire.BytesType
	case descriptorpb.FieldDescriptorProto_TYPE_GROUP:
		return protowire.StartGroupType
	default:
		t = protowire.VarintType
	}
	packed := reg.Syntax == "proto3"
	if f.GetOptions() != nil && f.GetOptions().Packed != nil {
		packed = f.GetOptions().GetPacked()
	}
	if f.GetLabel() == descriptorpb.FieldDescriptorProto_LABEL_REPEATED && packed {
		return protowire.BytesType
	}
	return t
}

func typeName(f *fieldDesc) string {
	switch f.GetType() {
	case descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, descriptorpb.FieldDescriptorProto_TYPE_ENUM,
		descriptorpb.FieldDescriptorProto_TYPE_GROUP:
		return displayName(f.GetTypeName())
	}
	return strings.ToLower(strings.TrimPrefix(f.GetType().String(), "TYPE_"))
}

func reservesNumber(m *descriptorpb.DescriptorProto, n int32) bool {
	for _, r := range m.GetReservedRange() {
		if n >= r.GetStart() && n < r.GetEnd() {
			return true
		}
	}
	return false
}

func (d *protoDiff) enums() {
	if !d.readerIsNew {
		return
	}
	for _, name := range sortedKeys(d.w.Enums) {
		we := d.w.Enums[name]
		re, ok := d.r.Enums[name]
		if !ok {
			continue
		}
		have := make(map[int32]bool, len(re.GetValue()))
		for _, v := range re.GetValue() {
			have[v.GetNumber()] = true
		}
		for _, v := range we.GetValue() {
			if have[v.GetNumber()] {
				continue
			}
			reserved := slices.ContainsFunc(re.GetReservedRange(), func(r *descriptorpb.EnumDescriptorProto_EnumReservedRange) bool {
				return v.GetNumber() >= r.GetStart() && v.GetNumber() <= r.GetEnd()
			})
			vp := displayName(name) + "." + v.GetName()
			if reserved {
				d.add(sg.Warning("protobuf-enum-value-removed", sg.KindEnumValueRemoved, vp,
					fmt.Sprintf("enum value %s (%d) was removed and reserved", v.GetName(), v.GetNumber())))
				continue
			}
			d.add(sg.Breaking("protobuf-enum-value-removed", sg.KindEnumValueRemoved, vp,
				fmt.Sprintf("enum value %s (%d) was removed", v.GetName(), v.GetNumber())).
				WithValues(v.GetName(), ""))
		}
	}
}

// reusedNumbers reports candidate fields that take a number an older version
// used with an incompatible type, or one the older version reserved. Numbers
// the newest version still declares are left to the pairwise diff.
func reusedNumbers(candidate, older, newest string) ([]sg.Violation, error) {
	cfd, err := protobuf.ParseDescriptor(candidate)
	if err != nil {
		return nil, err
	}
	ofd, err := protobuf.ParseDescriptor(older)
	if err != nil {
		return nil, err
	}
	nfd, err := protobuf.ParseDescriptor(newest)
	if err != nil {
		return nil, err
	}
	d := &protoDiff{
		r:           protobuf.NewRegistry(cfd),
		w:           protobuf.NewRegistry(ofd),
		readerIsNew: true,
	}
	latest := protobuf.NewRegistry(nfd)

	for _, name := range sortedKeys(d.r.Messages) {
		cm := d.r.Messages[name]
		om, ok := d.w.Messages[name]
		if !ok || cm.GetOptions().GetMapEntry() {
			continue
		}
		declared := make(map[int32]bool)
		for _, f := range latest.Messages[name].GetField() {
			declared[f.GetNumber()] = true
		}
		oByNum := make(map[int32]*fieldDesc, len(om.GetField()))
		for _, f := range om.GetField() {
			oByNum[f.GetNumber()] = f
		}
		path := displayName(name)
		for _, cf := range cm.GetField() {
			fp := path + "." + cf.GetName()
			if of, ok := oByNum[cf.GetNumber()]; ok && !declared[cf.GetNumber()] && !d.typesCompatible(cf, of) {
				d.add(sg.Breaking("protobuf-field-number-reused", sg.KindFieldNumberReused, fp,
					fmt.Sprintf("field number %d was '%s' (%s) in an older version and is now '%s' (%s)",
						cf.GetNumber(), of.GetName(), typeName(of), cf.GetName(), typeName(cf))).
					WithValues(typeName(of), typeName(cf)))
				continue
			}
			switch {
			case reservesNumber(om, cf.GetNumber()):
				d.add(sg.Breaking("protobuf-reserved-reused", sg.KindReservedReused, fp,
					fmt.Sprintf("field '%s' uses number %d, which was reserved", cf.GetName(), cf.GetNumber())).
					WithValues("", fmt.Sprint(cf.GetNumber())))
			case slices.Contains(om.GetReservedName(), cf.GetName()):
				d.add(sg.Breaking("protobuf-reserved-reused", sg.KindReservedReused, fp,
					fmt.Sprintf("field name '%s' was reserved", cf.GetName())))
			}
		}
	}
	return d.out, nil
}
