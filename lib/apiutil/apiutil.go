package apiutil

import (
	"encoding/json"
	"net/http"
	"net/url"
	"reflect"
)

var (
	kErrorType     = reflect.TypeOf((*error)(nil)).Elem()
	kUrlValuesType = reflect.TypeOf(url.Values(nil))
)

type apiHandlerType struct {
	inType       reflect.Type
	handlerValue reflect.Value
}

func newHandler(handler interface{}) http.Handler {
	handlerValue := reflect.ValueOf(handler)
	handlerType := handlerValue.Type()
	if handlerType.Kind() != reflect.Func {
		panic("NewHandler argument must be a func.")
	}
	if handlerType.NumIn() != 1 {
		panic("NewHandler argument must be a func of one arg")
	}
	if handlerType.NumOut() != 2 || handlerType.Out(1) != kErrorType {
		panic("NewHandler argument must be a func returning 1 value and 1 error")
	}
	return &apiHandlerType{
		inType:       handlerType.In(0),
		handlerValue: handlerValue,
	}
}

func (h *apiHandlerType) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var inValue reflect.Value
	if h.inType == kUrlValuesType {
		if err := r.ParseForm(); err != nil {
			showError(w, 400, err)
			return
		}
		inValue = reflect.ValueOf(r.Form)
	} else {
		ptrValue := reflect.New(h.inType)
		decoder := json.NewDecoder(r.Body)
		if err := decoder.Decode(ptrValue.Interface()); err != nil {
			showError(w, 400, err)
			return
		}
		inValue = ptrValue.Elem()
	}
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	results := h.handlerValue.Call([]reflect.Value{inValue})
	if !results[1].IsNil() {
		showError(w, 400, results[1].Interface().(error))
		return
	}
	json.NewEncoder(w).Encode(results[0].Interface())
}

func showError(w http.ResponseWriter, statusCode int, err error) {
	if httpError, ok := err.(HTTPError); ok {
		statusCode = httpError.Status()
	}
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(&struct {
		Error string `json:"error,omitempty"`
	}{
		Error: err.Error(),
	})
}
