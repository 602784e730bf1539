package parser

import (
	"encoding/xml"
	"os"
	"strings"
)

// junitTestSuites is the root element of a JUnit XML report. Some
// producers emit a bare <testsuite> as the document element instead
// of wrapping it in <testsuites>; ParseJUnitFile handles both.
type junitTestSuites struct {
	XMLName    xml.Name          `xml:"testsuites"`
	TestSuites []junitTestSuite  `xml:"testsuite"`
}

type junitTestSuite struct {
	TestCases []junitTestCase `xml:"testcase"`
	Suites    []junitTestSuite `xml:"testsuite"`
}

type junitTestCase struct {
	ClassName string         `xml:"classname,attr"`
	Name      string         `xml:"name,attr"`
	File      string         `xml:"file,attr"`
	Failure   *junitFailNode `xml:"failure"`
	Error     *junitFailNode `xml:"error"`
}

type junitFailNode struct {
	Message string `xml:"message,attr"`
	Text    string `xml:",chardata"`
}

// FailureInfo is the tagged variant carrying a JUnit <failure> or
// <error> node's content (spec §9 "Dynamic objects & duck typing").
type FailureInfo struct {
	Kind    string // "failure" | "error"
	Message string
	Text    string
}

// CombinedMessage renders the failure_message column value: the
// message attribute, a blank line, then the trimmed body text.
func (f FailureInfo) CombinedMessage() string {
	return strings.TrimSpace(f.Message + "\n\n" + f.Text)
}

// junitTestKey builds the test_key a JUnit <testcase> should match
// against a parsed run-log TestResult: classname is reduced to its
// tail component after the last '.', per spec §4.1.
func junitTestKey(tc junitTestCase) string {
	return TestKey(tc.File, classNameTail(tc.ClassName), tc.Name)
}

func classNameTail(className string) string {
	if idx := strings.LastIndex(className, "."); idx >= 0 {
		return className[idx+1:]
	}
	return className
}

// ParseJUnitFile parses one JUnit XML file into a map of
// test_key -> FailureInfo for every <testcase> carrying a <failure> or
// <error> child.
func ParseJUnitFile(path string) (map[string]FailureInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var root junitTestSuites
	if err := xml.Unmarshal(data, &root); err != nil {
		// Some producers emit a bare <testsuite> document element.
		var single junitTestSuite
		if err2 := xml.Unmarshal(data, &single); err2 != nil {
			return nil, err
		}
		root = junitTestSuites{TestSuites: []junitTestSuite{single}}
	}

	out := map[string]FailureInfo{}
	for _, suite := range root.TestSuites {
		collectJUnitFailures(suite, out)
	}
	return out, nil
}

func collectJUnitFailures(suite junitTestSuite, out map[string]FailureInfo) {
	for _, tc := range suite.TestCases {
		var node *junitFailNode
		kind := ""
		switch {
		case tc.Failure != nil:
			node, kind = tc.Failure, "failure"
		case tc.Error != nil:
			node, kind = tc.Error, "error"
		default:
			continue
		}
		out[junitTestKey(tc)] = FailureInfo{
			Kind:    kind,
			Message: node.Message,
			Text:    node.Text,
		}
	}
	for _, child := range suite.Suites {
		collectJUnitFailures(child, out)
	}
}
