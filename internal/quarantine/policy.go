package quarantine

import "github.com/MimeLyc/subs-ai/pkg/log"

// Policy applies the mismatch rules shared by batch and synchronous modes.
type Policy struct {
	Counter   *Counter
	Log       *Log
	Threshold int
	System    string
}

// Mismatch records a malformed translation of request and logs the pair once
// the count passes the threshold. The request stays eligible for retry.
func (p *Policy) Mismatch(request, response string) int {
	count := p.Counter.Increment(request)
	if p.Log != nil && count > p.Threshold {
		log.Warn("Translation failed %d times, saving to %s", count, p.Log.Path())
		if err := p.Log.Append(p.System, request, response); err != nil {
			log.Error("Failed to write quarantine log: %v", err)
		}
	}
	return count
}

// Resolved drops the error history of a request that translated correctly.
func (p *Policy) Resolved(request string) {
	p.Counter.Clear(request)
}
