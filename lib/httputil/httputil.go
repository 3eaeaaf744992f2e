package httputil

import (
	"net/url"
)

func toValues(nameValues []string) url.Values {
	length := len(nameValues)
	if length%2 != 0 {
		panic("nameValues must have even length.")
	}
	values := make(url.Values)
	for i := 0; i < length; i += 2 {
		values.Add(nameValues[i], nameValues[i+1])
	}
	return values
}

func newUrl(path string, nameValues []string) *url.URL {
	return &url.URL{
		Path:     path,
		RawQuery: toValues(nameValues).Encode()}
}

func appendParams(u *url.URL, nameValues []string) *url.URL {
	result := *u
	values := result.Query()
	for name, vals := range toValues(nameValues) {
		for _, val := range vals {
			values.Add(name, val)
		}
	}
	result.RawQuery = values.Encode()
	return &result
}

func withParams(u *url.URL, nameValues []string) *url.URL {
	result := *u
	values := result.Query()
	for name, vals := range toValues(nameValues) {
		values[name] = vals
	}
	result.RawQuery = values.Encode()
	return &result
}

func stripParams(u *url.URL, names []string) *url.URL {
	result := *u
	values := result.Query()
	for _, name := range names {
		values.Del(name)
	}
	result.RawQuery = values.Encode()
	return &result
}
