package protobuf

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

// ParseDescriptor parses .proto text into a FileDescriptorProto. Type names
// of message and enum fields are fully qualified with a leading dot when
// they resolve inside the file and kept verbatim otherwise.
func ParseDescriptor(text string) (*descriptorpb.FileDescriptorProto, error) {
	f, err := parse(text)
	if err != nil {
		var pe *parseError
		if errors.As(err, &pe) && pe.line > 0 {
			return nil, fmt.Errorf("protobuf: line %d, column %d: %s", pe.line, pe.column, pe.msg)
		}
		return nil, fmt.Errorf("protobuf: %w", err)
	}
	return f.descriptor(), nil
}

func (f *file) descriptor() *descriptorpb.FileDescriptorProto {
	syntax := f.syntax
	if syntax == "" {
		syntax = "proto2"
	}
	fd := &descriptorpb.FileDescriptorProto{
		Name:       proto.String(filename),
		Syntax:     proto.String(syntax),
		Dependency: append([]string(nil), f.imports...),
	}
	if f.pkg != "" {
		fd.Package = proto.String(f.pkg)
	}
	for _, m := range f.messages {
		fd.MessageType = append(fd.MessageType, f.messageDescriptor(m))
	}
	for _, e := range f.enums {
		fd.EnumType = append(fd.EnumType, enumDescriptor(e))
	}
	return fd
}

func (f *file) messageDescriptor(m *message) *descriptorpb.DescriptorProto {
	d := &descriptorpb.DescriptorProto{Name: proto.String(m.name)}
	for _, o := range m.oneofs {
		d.OneofDecl = append(d.OneofDecl, &descriptorpb.OneofDescriptorProto{Name: proto.String(o)})
	}
	for _, n := range m.nested {
		d.NestedType = append(d.NestedType, f.messageDescriptor(n))
	}
	for _, e := range m.enums {
		d.EnumType = append(d.EnumType, enumDescriptor(e))
	}
	for _, fl := range m.fields {
		fd := &descriptorpb.FieldDescriptorProto{
			Name:     proto.String(fl.name),
			Number:   proto.Int32(int32(fl.number)),
			JsonName: proto.String(fl.jsonName),
			Label:    f.fieldLabel(fl).Enum(),
		}
		if fl.oneof >= 0 {
			fd.OneofIndex = proto.Int32(int32(fl.oneof))
		}
		if f.proto3() && fl.label == labelOptional {
			fd.Proto3Optional = proto.Bool(true)
		}
		if fl.isMap {
			entry := f.mapEntry(m, fl)
			d.NestedType = append(d.NestedType, entry)
			fd.Type = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum()
			fd.TypeName = proto.String("." + m.fullName + "." + entry.GetName())
		} else if fl.isGroup {
			fd.Type = descriptorpb.FieldDescriptorProto_TYPE_GROUP.Enum()
			fd.TypeName = proto.String("." + m.fullName + "." + fl.typ)
		} else {
			fd.Type, fd.TypeName = f.fieldType(fl.typ, m.fullName)
		}
		d.Field = append(d.Field, fd)
	}
	for _, r := range m.reserved {
		for _, rg := range r.Ranges {
			end := int32(rg.To) + 1
			if rg.Max {
				end = maxFieldNumber + 1
			}
			d.ReservedRange = append(d.ReservedRange, &descriptorpb.DescriptorProto_ReservedRange{
				Start: proto.Int32(int32(rg.From)),
				End:   proto.Int32(end),
			})
		}
		d.ReservedName = append(d.ReservedName, r.FieldNames...)
	}
	return d
}

const maxFieldNumber = 1<<29 - 1

func (f *file) fieldLabel(fl *field) descriptorpb.FieldDescriptorProto_Label {
	switch fl.label {
	case labelRepeated:
		return descriptorpb.FieldDescriptorProto_LABEL_REPEATED
	case labelRequired:
		return descriptorpb.FieldDescriptorProto_LABEL_REQUIRED
	}
	return descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL
}

// fieldType maps a declared type to its descriptor type and type name.
func (f *file) fieldType(typ, scope string) (*descriptorpb.FieldDescriptorProto_Type, *string) {
	if scalars[typ] {
		t := descriptorpb.FieldDescriptorProto_Type(descriptorpb.FieldDescriptorProto_Type_value["TYPE_"+strings.ToUpper(typ)])
		return t.Enum(), nil
	}
	full, kind, ok := f.resolve(typ, scope)
	if !ok {
		return descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(), proto.String(typ)
	}
	if kind == typeEnum {
		return descriptorpb.FieldDescriptorProto_TYPE_ENUM.Enum(), proto.String("." + full)
	}
	return descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(), proto.String("." + full)
}

// mapEntry synthesizes the nested XxxEntry message protoc generates for a
// map field.
func (f *file) mapEntry(m *message, fl *field) *descriptorpb.DescriptorProto {
	name := strings.ToUpper(fl.jsonName[:1]) + fl.jsonName[1:] + "Entry"
	keyType, _ := f.fieldType(fl.keyType, m.fullName)
	valType, valName := f.fieldType(fl.typ, m.fullName)
	return &descriptorpb.DescriptorProto{
		Name: proto.String(name),
		Field: []*descriptorpb.FieldDescriptorProto{
			{
				Name: proto.String("key"), Number: proto.Int32(1), JsonName: proto.String("key"),
				Label: descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(), Type: keyType,
			},
			{
				Name: proto.String("value"), Number: proto.Int32(2), JsonName: proto.String("value"),
				Label: descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(), Type: valType, TypeName: valName,
			},
		},
		Options: &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)},
	}
}

func enumDescriptor(e *enum) *descriptorpb.EnumDescriptorProto {
	d := &descriptorpb.EnumDescriptorProto{Name: proto.String(e.name)}
	for _, v := range e.values {
		d.Value = append(d.Value, &descriptorpb.EnumValueDescriptorProto{
			Name:   proto.String(v.name),
			Number: proto.Int32(int32(v.number)),
		})
	}
	if e.allowAlias {
		d.Options = &descriptorpb.EnumOptions{AllowAlias: proto.Bool(true)}
	}
	for _, r := range e.reserved {
		for _, rg := range r.Ranges {
			end := int32(rg.To)
			if rg.Max {
				end = 1<<31 - 1
			}
			d.ReservedRange = append(d.ReservedRange, &descriptorpb.EnumDescriptorProto_EnumReservedRange{
				Start: proto.Int32(int32(rg.From)),
				End:   proto.Int32(end),
			})
		}
		d.ReservedName = append(d.ReservedName, r.FieldNames...)
	}
	return d
}
