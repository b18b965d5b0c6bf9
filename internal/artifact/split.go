// Package artifact splits a combined sshproxy response into its private key
// and certificate.
//
// The service answers with a PEM-armoured private key followed by the
// certificate. Blocks are found by their armour lines, never by offset, so
// any key algorithm or size works. The certificate may be a PEM block or a
// single OpenSSH "<type>-cert-v01@openssh.com <base64> [comment]" line.
package artifact

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrMalformedResponse is returned when a response does not contain exactly
// one private key block followed by one certificate.
var ErrMalformedResponse = errors.New("malformed response")

// Format names the markers the splitter looks for.
type Format struct {
	// KeyLabel is matched as a suffix of the PEM label so that "RSA PRIVATE
	// KEY", "OPENSSH PRIVATE KEY" and "PRIVATE KEY" all qualify.
	KeyLabel string `yaml:"key_label"`
	// CertLabel is the exact PEM label of a certificate block.
	CertLabel string `yaml:"cert_label"`
	// CertTypeSuffix identifies an OpenSSH certificate line by its key type.
	CertTypeSuffix string `yaml:"cert_type_suffix"`
}

// DefaultFormat matches the NERSC sshproxy service.
var DefaultFormat = Format{
	KeyLabel:       "PRIVATE KEY",
	CertLabel:      "CERTIFICATE",
	CertTypeSuffix: "-cert-v01@openssh.com",
}

// WithDefaults fills empty fields from DefaultFormat.
func (f Format) WithDefaults() Format {
	if f.KeyLabel == "" {
		f.KeyLabel = DefaultFormat.KeyLabel
	}
	if f.CertLabel == "" {
		f.CertLabel = DefaultFormat.CertLabel
	}
	if f.CertTypeSuffix == "" {
		f.CertTypeSuffix = DefaultFormat.CertTypeSuffix
	}
	return f
}

// Pair holds the two artifacts carried by a response. Each slice is an exact
// copy of the corresponding span of the response.
type Pair struct {
	PrivateKey  []byte
	Certificate []byte
}

// line is one '\n'-terminated line of the input. start and end are byte
// offsets; end includes the newline when there is one.
type line struct {
	text       []byte // without "\r\n" / "\n"
	start, end int
}

func splitLines(body []byte) []line {
	var lines []line
	start := 0
	for start < len(body) {
		i := bytes.IndexByte(body[start:], '\n')
		end := len(body)
		textEnd := len(body)
		if i >= 0 {
			textEnd = start + i
			end = textEnd + 1
		}
		text := bytes.TrimSuffix(body[start:textEnd], []byte("\r"))
		lines = append(lines, line{text: text, start: start, end: end})
		start = end
	}
	return lines
}

func (l line) blank() bool {
	return len(bytes.TrimSpace(l.text)) == 0
}

// armor returns the kind ("BEGIN" or "END") and label of a PEM armour line.
func armor(text []byte) (kind, label string, ok bool) {
	text = bytes.TrimSpace(text)
	if !bytes.HasPrefix(text, []byte("-----")) || !bytes.HasSuffix(text, []byte("-----")) || len(text) < 10 {
		return "", "", false
	}
	inner := string(text[5 : len(text)-5])
	switch {
	case len(inner) > 6 && inner[:6] == "BEGIN ":
		return "BEGIN", inner[6:], true
	case len(inner) > 4 && inner[:4] == "END ":
		return "END", inner[4:], true
	}
	return "", "", false
}

// block finds the END line matching the BEGIN at lines[begin] and returns
// its index. The block must have at least one body line and no nested
// armour.
func block(lines []line, begin int, label string) (int, error) {
	for i := begin + 1; i < len(lines); i++ {
		kind, l, ok := armor(lines[i].text)
		if !ok {
			continue
		}
		if kind == "END" && l == label {
			if !hasBody(lines[begin+1 : i]) {
				return 0, fmt.Errorf("%w: empty %s block", ErrMalformedResponse, label)
			}
			return i, nil
		}
		return 0, fmt.Errorf("%w: unexpected %q inside %s block", ErrMalformedResponse, string(bytes.TrimSpace(lines[i].text)), label)
	}
	return 0, fmt.Errorf("%w: missing -----END %s----- marker", ErrMalformedResponse, label)
}

func hasBody(lines []line) bool {
	for _, l := range lines {
		if !l.blank() {
			return true
		}
	}
	return false
}

func nextNonBlank(lines []line, from int) int {
	for i := from; i < len(lines); i++ {
		if !lines[i].blank() {
			return i
		}
	}
	return len(lines)
}

func hasLabelSuffix(label, suffix string) bool {
	return len(label) >= len(suffix) && label[len(label)-len(suffix):] == suffix
}

// certLine reports whether text looks like "<type> <base64> [comment]" with
// a certificate key type.
func certLine(text []byte, suffix string) bool {
	fields := bytes.Fields(text)
	if len(fields) < 2 {
		return false
	}
	return hasLabelSuffix(string(fields[0]), suffix)
}

// Split parses body into a Pair. It returns ErrMalformedResponse, and never a
// partial Pair, when either block is missing or the response contains
// anything other than whitespace around them.
func Split(body []byte, f Format) (*Pair, error) {
	f = f.WithDefaults()
	lines := splitLines(body)

	i := nextNonBlank(lines, 0)
	if i == len(lines) {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}

	kind, keyLabel, ok := armor(lines[i].text)
	if !ok || kind != "BEGIN" || !hasLabelSuffix(keyLabel, f.KeyLabel) {
		if bytes.Contains(body, []byte("BEGIN")) && bytes.Contains(body, []byte(f.KeyLabel)) {
			return nil, fmt.Errorf("%w: unexpected content before the private key", ErrMalformedResponse)
		}
		return nil, fmt.Errorf("%w: no %q header found", ErrMalformedResponse, f.KeyLabel)
	}

	keyEnd, err := block(lines, i, keyLabel)
	if err != nil {
		return nil, err
	}
	key := lines[i].start
	keyStop := lines[keyEnd].end

	j := nextNonBlank(lines, keyEnd+1)
	if j == len(lines) {
		return nil, fmt.Errorf("%w: no certificate after the private key", ErrMalformedResponse)
	}

	var cert []byte
	var certLast int
	if kind, label, ok := armor(lines[j].text); ok {
		if kind != "BEGIN" || label != f.CertLabel {
			return nil, fmt.Errorf("%w: expected %s block, found %q", ErrMalformedResponse, f.CertLabel, string(bytes.TrimSpace(lines[j].text)))
		}
		end, err := block(lines, j, label)
		if err != nil {
			return nil, err
		}
		cert = withNewline(body[lines[j].start:lines[end].end])
		certLast = end
	} else if certLine(lines[j].text, f.CertTypeSuffix) {
		cert = withNewline(body[lines[j].start:lines[j].end])
		certLast = j
	} else {
		return nil, fmt.Errorf("%w: no certificate after the private key", ErrMalformedResponse)
	}

	if k := nextNonBlank(lines, certLast+1); k != len(lines) {
		return nil, fmt.Errorf("%w: unexpected content after the certificate", ErrMalformedResponse)
	}

	return &Pair{
		PrivateKey:  withNewline(body[key:keyStop]),
		Certificate: cert,
	}, nil
}

// withNewline copies b and terminates it with a newline if the response
// ended without one.
func withNewline(b []byte) []byte {
	out := make([]byte, len(b), len(b)+1)
	copy(out, b)
	if len(out) > 0 && out[len(out)-1] != '\n' {
		out = append(out, '\n')
	}
	return out
}
