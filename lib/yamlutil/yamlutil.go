package yamlutil

import (
	"reflect"
	"sort"
	"strings"
)

func errorString(fields []string) string {
	return "Unrecognized fields: " + strings.Join(fields, ", ")
}

func yamlName(field reflect.StructField) string {
	tag := field.Tag.Get("yaml")
	if tag != "" {
		return strings.SplitN(tag, ",", 2)[0]
	}
	if field.PkgPath != "" {
		// unexported
		return ""
	}
	return strings.ToLower(field.Name)
}

func knownFields(structPtr interface{}) map[string]bool {
	t := reflect.TypeOf(structPtr).Elem()
	result := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if name := yamlName(t.Field(i)); name != "" {
			result[name] = true
		}
	}
	return result
}

func strictUnmarshalYAML(
	unmarshal func(part interface{}) error, structPtr interface{}) error {
	if err := unmarshal(structPtr); err != nil {
		return err
	}
	// unmarshal the same chunk again as a map to see every field the
	// config file actually contains
	var nameValues map[string]interface{}
	if err := unmarshal(&nameValues); err != nil {
		return err
	}
	known := knownFields(structPtr)
	var unrecognized []string
	for name := range nameValues {
		if !known[name] {
			unrecognized = append(unrecognized, name)
		}
	}
	if len(unrecognized) != 0 {
		sort.Strings(unrecognized)
		return &UnrecognizedFieldsError{Fields: unrecognized}
	}
	return nil
}
