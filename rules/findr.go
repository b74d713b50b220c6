//go:build ruleguard

// Package gorules holds project lint rules run by golangci-lint through ruleguard.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// StdErrorsInInternal flags the standard errors package inside internal/.
// Errors there go through internal/errors so they carry a component and a
// category for the API status mapping and telemetry.
//
//	errors.New("x")                          // flagged
//	errors.NewStd("x")                       // sentinel
//	errors.New(err).Component("c").Build()   // enhanced
func StdErrorsInInternal(m dsl.Matcher) {
	m.Import("errors")

	m.Match(`errors.New($msg)`).
		Where(m.File().Imports("errors") &&
			m["msg"].Type.Is("string") &&
			m.File().PkgPath.Matches(`/internal/`) &&
			!m.File().PkgPath.Matches(`/internal/errors$`)).
		Report("use github.com/findrapp/findr/internal/errors instead of the standard errors package")
}

// WrapWithW flags fmt.Errorf calls that format an error without %w, which
// breaks errors.Is on sentinels like supabase.ErrNotConfigured.
func WrapWithW(m dsl.Matcher) {
	m.Match(`fmt.Errorf($format, $*_, $err, $*_)`, `fmt.Errorf($format, $err, $*_)`, `fmt.Errorf($format, $*_, $err)`).
		Where(m["err"].Type.Implements("error") &&
			m["format"].Const &&
			!m["format"].Text.Matches(`%w`)).
		Report("wrap $err with %w so callers can match it")
}

// RawHTTPClient flags package-level net/http helpers. Outbound calls go
// through internal/httpclient, which sets timeouts and records metrics.
func RawHTTPClient(m dsl.Matcher) {
	m.Match(`http.Get($*_)`, `http.Post($*_)`, `http.Head($*_)`, `http.PostForm($*_)`, `http.DefaultClient.Do($*_)`).
		Where(!m.File().PkgPath.Matches(`/internal/httpclient$`) &&
			!m.File().Name.Matches(`_test\.go$`)).
		Report("use internal/httpclient instead of the default net/http client")
}

// WaitGroupGo prefers wg.Go over manual Add and Done pairs.
func WaitGroupGo(m dsl.Matcher) {
	m.Match(`$wg.Add(1); go func() { defer $wg.Done(); $*body }()`).
		Where(m["wg"].Type.Is("*sync.WaitGroup") || m["wg"].Type.Is("sync.WaitGroup")).
		Report("use $wg.Go(func() { ... })").
		Suggest("$wg.Go(func() { $body })")

	m.Match(`go func() { defer $wg.Done(); $*_ }()`).
		Where(m["wg"].Type.Is("*sync.WaitGroup") || m["wg"].Type.Is("sync.WaitGroup")).
		Report("use $wg.Go(func() { ... }) instead of a deferred Done")
}

// TestingContext prefers t.Context in tests so work is cancelled when the
// test ends.
func TestingContext(m dsl.Matcher) {
	m.Match(`context.Background()`, `context.TODO()`).
		Where(m.File().Name.Matches(`_test\.go$`)).
		Report("use t.Context() in tests")
}

// GlobalLoggerInLoop flags logger.Global() lookups inside loops. Resolve the
// logger once and reuse it.
func GlobalLoggerInLoop(m dsl.Matcher) {
	m.Match(`for $*_ { $*_; logger.Global().$_($*_); $*_ }`, `for $*_ := range $_ { $*_; logger.Global().$_($*_); $*_ }`).
		Report("hoist logger.Global() out of the loop")
}

// UnboundedBodyRead flags io.ReadAll on response bodies; use
// httpclient.ReadBody with a limit.
func UnboundedBodyRead(m dsl.Matcher) {
	m.Match(`io.ReadAll($resp.Body)`).
		Where(m["resp"].Type.Is("*http.Response")).
		Report("use httpclient.ReadBody($resp, limit) to bound the read")
}
