// Package yamlutil provides strict YAML unmarshaling for configuration
// structs so that a misspelled field in a config file becomes an error
// instead of a silently ignored setting.
package yamlutil

// StrictUnmarshalYAML unmarshals YAML storing at structPtr, but returns an
// error of type *UnrecognizedFieldsError if the YAML contains unrecognized
// top level fields.
//
// unmarshal is what is passed to the standard UnmarshalYAML method.
// structPtr must be a pointer to a struct, not a slice or map.
func StrictUnmarshalYAML(
	unmarshal func(interface{}) error, structPtr interface{}) error {
	return strictUnmarshalYAML(unmarshal, structPtr)
}

// UnrecognizedFieldsError reports the config file fields that do not
// correspond to any field of the target struct.
type UnrecognizedFieldsError struct {
	Fields []string
}

func (e *UnrecognizedFieldsError) Error() string {
	return errorString(e.Fields)
}
