package jolokia

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// ObjectName is a parsed JMX object name such as
// Catalina:type=Manager,host=localhost,context=/shop.
type ObjectName struct {
	Domain     string
	Properties map[string]string
}

// ParseObjectName splits name into its domain and key properties. Quoted values are
// unquoted; a comma inside quotes does not end the value.
func ParseObjectName(name string) (ObjectName, error) {
	domain, rest, ok := strings.Cut(name, ":")
	if !ok || rest == "" {
		return ObjectName{}, errors.Newf("malformed object name %q", name)
	}
	on := ObjectName{Domain: domain, Properties: make(map[string]string)}
	for rest != "" {
		key, after, ok := strings.Cut(rest, "=")
		if !ok || key == "" {
			return ObjectName{}, errors.Newf("malformed key property in %q", name)
		}
		var value string
		if strings.HasPrefix(after, `"`) {
			value, after, ok = unquote(after)
			if !ok {
				return ObjectName{}, errors.Newf("unterminated quoted value in %q", name)
			}
			if after != "" && !strings.HasPrefix(after, ",") {
				return ObjectName{}, errors.Newf("unexpected %q after quoted value in %q", after, name)
			}
			after = strings.TrimPrefix(after, ",")
		} else {
			value, after, _ = strings.Cut(after, ",")
		}
		on.Properties[key] = value
		rest = after
	}
	return on, nil
}

func unquote(s string) (string, string, bool) {
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if i+1 >= len(s) {
				return "", "", false
			}
			i++
			if s[i] == 'n' {
				b.WriteByte('\n')
			} else {
				b.WriteByte(s[i])
			}
		case '"':
			return b.String(), s[i+1:], true
		default:
			b.WriteByte(s[i])
		}
	}
	return "", "", false
}

// Application returns the name of the web application a Manager bean belongs to. Tomcat
// 7 and later use the context property, older releases the path property.
func (o ObjectName) Application() string {
	if v, ok := o.Properties["context"]; ok {
		return v
	}
	return o.Properties["path"]
}
