package api

import (
	"net/url"

	"github.com/oapi-codegen/runtime"
	"github.com/pkg/errors"
)

// pathParam escapes a path parameter value.
func pathParam(name string, value interface{}) (string, error) {
	s, err := runtime.StyleParamWithLocation("simple", false, name, runtime.ParamLocationPath, value)
	if err != nil {
		return "", errors.Wrapf(err, "styling path param %s", name)
	}
	return s, nil
}

// addQueryParam styles value and adds the resulting pairs to q. style is "form"
// for scalars or "deepObject" for maps.
func addQueryParam(q url.Values, style, name string, value interface{}) error {
	frag, err := runtime.StyleParamWithLocation(style, true, name, runtime.ParamLocationQuery, value)
	if err != nil {
		return errors.Wrapf(err, "styling query param %s", name)
	}
	parsed, err := url.ParseQuery(frag)
	if err != nil {
		return errors.Wrapf(err, "parsing styled query param %s", name)
	}
	for k, vs := range parsed {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	return nil
}

func (p ListParams) addTo(q url.Values) error {
	if p.Limit > 0 {
		if err := addQueryParam(q, "form", "$limit", p.Limit); err != nil {
			return err
		}
	}
	if p.Skip > 0 {
		if err := addQueryParam(q, "form", "$skip", p.Skip); err != nil {
			return err
		}
	}
	if len(p.Sort) > 0 {
		if err := addQueryParam(q, "deepObject", "$sort", p.Sort); err != nil {
			return err
		}
	}
	if len(p.Filter) > 0 {
		if err := addQueryParam(q, "deepObject", "filter", p.Filter); err != nil {
			return err
		}
	}
	return nil
}

func (p WriteParams) query() (url.Values, error) {
	q := url.Values{}
	if p.IsAsync != nil {
		if err := addQueryParam(q, "form", "isAsync", *p.IsAsync); err != nil {
			return nil, err
		}
	}
	return q, nil
}
