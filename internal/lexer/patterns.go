package lexer

import (
	"regexp"
	"slices"
)

// Pattern tags reported in CodeDetails.Patterns.
const (
	PatternReactHooks          = "react-hooks"
	PatternAsyncAwait          = "async-await"
	PatternPromises            = "promises"
	PatternErrorHandling       = "error-handling"
	PatternTryCatch            = "try-catch"
	PatternPromiseCatch        = "promise-catch"
	PatternErrorReturns        = "error-returns"
	PatternClasses             = "classes"
	PatternDecorators          = "decorators"
	PatternGenerics            = "generics"
	PatternGoroutines          = "goroutines"
	PatternDependencyInjection = "dependency-injection"
	PatternSingleton           = "singleton"
	PatternFactory             = "factory"
	PatternMiddleware          = "middleware"
	PatternEventEmitter        = "event-emitter"
	PatternTest                = "test"
)

type patternRule struct {
	tag      string
	families []Family // empty means every family
	re       *regexp.Regexp
}

var patternRules = []patternRule{
	{PatternReactHooks, []Family{FamilyJavaScript}, regexp.MustCompile(`\buse(?:State|Effect|Memo|Callback|Ref|Context|Reducer|LayoutEffect)\s*\(`)},
	{PatternAsyncAwait, nil, regexp.MustCompile(`\basync\s+(?:def|fn|function|\(|[A-Za-z_$][\w$]*\s*\()|\bawait\b|\.await\b`)},
	{PatternPromises, []Family{FamilyJavaScript}, regexp.MustCompile(`\bnew\s+Promise\b|\.then\s*\(|Promise\.(?:all|race|allSettled|any)\b`)},
	{PatternTryCatch, []Family{FamilyJavaScript, FamilyJava}, regexp.MustCompile(`\btry\s*\{`)},
	{PatternTryCatch, []Family{FamilyPython}, regexp.MustCompile(`(?m)^\s*try\s*:`)},
	{PatternPromiseCatch, []Family{FamilyJavaScript}, regexp.MustCompile(`\.catch\s*\(`)},
	{PatternErrorReturns, []Family{FamilyGo}, regexp.MustCompile(`\berr\s*!=\s*nil`)},
	{PatternErrorReturns, []Family{FamilyRust}, regexp.MustCompile(`Result<|\?;`)},
	{PatternClasses, nil, regexp.MustCompile(`(?m)^\s*(?:export\s+)?(?:default\s+)?(?:abstract\s+)?(?:public\s+)?class\s+\w+`)},
	{PatternDecorators, []Family{FamilyJavaScript, FamilyPython, FamilyJava}, regexp.MustCompile(`(?m)^\s*@[A-Za-z_][\w.]*`)},
	{PatternGenerics, []Family{FamilyJavaScript, FamilyJava, FamilyRust}, regexp.MustCompile(`\b(?:function|class|interface|type|fn|struct|impl)\s*\w*\s*<[A-Z]\w*`)},
	{PatternGenerics, []Family{FamilyGo}, regexp.MustCompile(`\bfunc\s+(?:\([^)]*\)\s*)?\w+\[[A-Z]\w*\s+\w+`)},
	{PatternGoroutines, []Family{FamilyGo}, regexp.MustCompile(`\bgo\s+(?:func\b|[\w.]+\()`)},
	{PatternDependencyInjection, nil, regexp.MustCompile(`@Injectable\b|@Inject\b|\bconstructor\s*\(\s*(?:private|public|protected|readonly)\s|\bcontainer\.(?:register|resolve)\b`)},
	{PatternSingleton, nil, regexp.MustCompile(`\bgetInstance\s*\(|\bstatic\s+instance\b|sync\.Once\b`)},
	{PatternFactory, nil, regexp.MustCompile(`\b(?:create|make|build)[A-Z]\w*\s*\(|\bFactory\b`)},
	{PatternMiddleware, nil, regexp.MustCompile(`\b(?:app|router)\.use\s*\(|\(\s*req\s*,\s*res\s*,\s*next\s*\)|\bnext\s*\(\s*\)`)},
	{PatternEventEmitter, nil, regexp.MustCompile(`\bEventEmitter\b|\.emit\s*\(|\.on\s*\(\s*['"]`)},
	{PatternTest, nil, regexp.MustCompile(`\b(?:describe|it|test)\s*\(\s*['"` + "`" + `]|\bfunc\s+Test\w*\s*\(\s*t\s+\*testing\.T|(?m)^\s*def\s+test_\w+|#\[test\]|@Test\b`)},
}

// DetectPatterns returns sorted pattern tags found in content. Files using any
// of the specific error-handling styles also get the generic error-handling tag.
func DetectPatterns(filePath, content string) []string {
	family := FamilyFor(filePath)
	if family == FamilyUnknown {
		return []string{}
	}

	tags := []string{}
	for _, rule := range patternRules {
		if len(rule.families) > 0 && !slices.Contains(rule.families, family) {
			continue
		}
		if slices.Contains(tags, rule.tag) {
			continue
		}
		if rule.re.MatchString(content) {
			tags = append(tags, rule.tag)
		}
	}

	if IsTestFile(filePath) && !slices.Contains(tags, PatternTest) {
		tags = append(tags, PatternTest)
	}
	for _, specific := range []string{PatternTryCatch, PatternPromiseCatch, PatternErrorReturns} {
		if slices.Contains(tags, specific) {
			tags = append(tags, PatternErrorHandling)
			break
		}
	}

	slices.Sort(tags)
	return tags
}
