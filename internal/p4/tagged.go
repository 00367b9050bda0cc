package p4

import (
	"strconv"
	"strings"
)

// Record is one record of p4 -ztag tagged output: field name to value.
type Record map[string]string

// ParseTagged parses p4 -ztag text output into records.
//
// Tagged output looks like:
//
//	... change 1234
//	... time 1609459200
//	... user jdoe
//	... desc Fix the frobnicator.
//
// Field lines start with "... ". A value may continue over following lines
// (multiline changelist descriptions do this); continuation lines carry no
// prefix and are appended to the preceding field. A blank line between
// records separates them; a repeated field name also starts a new record,
// which guards against descriptions that themselves contain blank lines.
//
// A description line can itself begin with "... "; such a line only counts
// as a field when the word after the prefix is a field name p4 actually
// emits, otherwise it stays part of the preceding value.
func ParseTagged(out []byte) []Record {
	var records []Record
	var cur Record
	var lastField string

	flush := func() {
		if len(cur) > 0 {
			records = append(records, cur)
		}
		cur = nil
		lastField = ""
	}

	for _, line := range strings.Split(string(out), "\n") {
		if strings.HasPrefix(line, "... ") {
			rest := line[len("... "):]
			field, value, _ := strings.Cut(rest, " ")
			if isKnownField(field) {
				if cur == nil {
					cur = Record{}
				} else if _, seen := cur[field]; seen {
					flush()
					cur = Record{}
				}
				cur[field] = value
				lastField = field
				continue
			}
		}

		trimmed := strings.TrimRight(line, "\r")
		if trimmed == "" {
			if lastField == "" {
				flush()
				continue
			}
			// Could be a record separator or a blank line inside a
			// multiline value. Treat it as part of the value; a repeated
			// field name will split the record if this was a separator.
			cur[lastField] += "\n"
			continue
		}

		if lastField != "" {
			if cur[lastField] != "" && !strings.HasSuffix(cur[lastField], "\n") {
				cur[lastField] += "\n"
			}
			cur[lastField] += trimmed
		}
	}
	flush()

	// Trim the trailing newlines that blank-line separators left on the
	// last multiline field of each record.
	for _, r := range records {
		for k, v := range r {
			r[k] = strings.TrimRight(v, "\n")
		}
	}
	return records
}

// knownFields are the tagged field names the commands this package runs
// can produce: changes/describe, info, key, and users output.
var knownFields = map[string]bool{
	"change": true, "time": true, "user": true, "client": true,
	"status": true, "desc": true, "changeType": true, "path": true,
	"oldChange": true, "shelved": true,

	"ServerID": true, "serverAddress": true, "serverVersion": true,
	"serverLicense": true, "serverRoot": true, "serverDate": true,
	"serverServices": true, "caseHandling": true, "unicode": true,
	"userName": true, "clientName": true, "clientAddress": true,
	"peerAddress": true, "security": true, "monitor": true,
	"password": true,

	"value": true,

	"User": true, "Email": true, "FullName": true,
	"Update": true, "Access": true, "Type": true, "AuthMethod": true,
}

// indexedPrefixes are field families that carry a numeric suffix in
// describe output: depotFile0, action1, ...
var indexedPrefixes = []string{
	"depotFile", "action", "type", "rev", "fileSize", "digest",
}

// isKnownField reports whether name is a tagged field p4 emits, directly
// or as an indexed family member.
func isKnownField(name string) bool {
	if knownFields[name] {
		return true
	}
	for _, prefix := range indexedPrefixes {
		suffix, ok := strings.CutPrefix(name, prefix)
		if !ok || suffix == "" {
			continue
		}
		digits := true
		for _, r := range suffix {
			if r < '0' || r > '9' {
				digits = false
				break
			}
		}
		if digits {
			return true
		}
	}
	return false
}

// indexedField returns record values stored under numbered field names,
// e.g. depotFile0, depotFile1, ... in "p4 describe" output.
func indexedField(r Record, name string) []string {
	var values []string
	for i := 0; ; i++ {
		v, ok := r[name+strconv.Itoa(i)]
		if !ok {
			return values
		}
		values = append(values, v)
	}
}
