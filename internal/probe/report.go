package probe

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"
)

type Report struct {
	URL     string
	Results []Result
	Elapsed time.Duration
}

type LatencyStats struct {
	Min, Max, Mean, Median, P95, StdDev time.Duration
}

func (r *Report) Successes() int {
	n := 0
	for _, res := range r.Results {
		if res.Success {
			n++
		}
	}
	return n
}

// SuccessRate is a percentage in [0, 100]
func (r *Report) SuccessRate() float64 {
	if len(r.Results) == 0 {
		return 0
	}
	return float64(r.Successes()) / float64(len(r.Results)) * 100
}

func (r *Report) StatusCounts() map[int]int {
	out := map[int]int{}
	for _, res := range r.Results {
		if res.Status != 0 {
			out[res.Status]++
		}
	}
	return out
}

func (r *Report) ErrorCounts() map[string]int {
	out := map[string]int{}
	for _, res := range r.Results {
		if res.Error != "" {
			out[res.Error]++
		}
	}
	return out
}

// Latency covers requests that got a response. ok is false when none did.
func (r *Report) Latency() (LatencyStats, bool) {
	var d []time.Duration
	for _, res := range r.Results {
		if res.Status != 0 {
			d = append(d, res.Duration)
		}
	}
	if len(d) == 0 {
		return LatencyStats{}, false
	}
	sort.Slice(d, func(i, j int) bool { return d[i] < d[j] })

	var sum float64
	for _, v := range d {
		sum += float64(v)
	}
	mean := sum / float64(len(d))

	s := LatencyStats{Min: d[0], Max: d[len(d)-1], Mean: time.Duration(mean)}
	if mid := len(d) / 2; len(d)%2 == 1 {
		s.Median = d[mid]
	} else {
		s.Median = (d[mid-1] + d[mid]) / 2
	}
	s.P95 = d[int(math.Ceil(0.95*float64(len(d))))-1]
	if len(d) > 1 {
		var sq float64
		for _, v := range d {
			sq += (float64(v) - mean) * (float64(v) - mean)
		}
		s.StdDev = time.Duration(math.Sqrt(sq / float64(len(d)-1)))
	}
	return s, true
}

func (r *Report) RequestsPerSecond() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(len(r.Results)) / r.Elapsed.Seconds()
}

func (r *Report) Verdict() string {
	rate := r.SuccessRate()
	switch {
	case rate == 100:
		return "EXCELLENT - All requests succeeded!"
	case rate >= 99:
		return "VERY GOOD - Nearly perfect reliability"
	case rate >= 95:
		return "GOOD - Acceptable reliability"
	case rate >= 90:
		return "FAIR - Some reliability issues"
	default:
		return "POOR - Significant reliability problems"
	}
}

// WriteSummary prints the report in the probe's text format
func (r *Report) WriteSummary(w io.Writer) {
	line := strings.Repeat("=", 70)
	total := len(r.Results)
	ok := r.Successes()
	rate := r.SuccessRate()

	fmt.Fprintf(w, "\n%s\nTest Summary\n%s\n", line, line)
	fmt.Fprintf(w, "\nRequest Statistics:\n")
	fmt.Fprintf(w, "  Total Requests:      %d\n", total)
	fmt.Fprintf(w, "  Successful:          %d (%.2f%%)\n", ok, rate)
	fmt.Fprintf(w, "  Failed:              %d (%.2f%%)\n", total-ok, 100-rate)

	if counts := r.StatusCounts(); len(counts) > 0 {
		responded := 0
		codes := make([]int, 0, len(counts))
		for code, n := range counts {
			codes = append(codes, code)
			responded += n
		}
		sort.Ints(codes)
		fmt.Fprintf(w, "\nStatus Code Distribution:\n")
		for _, code := range codes {
			fmt.Fprintf(w, "  %d: %d (%.2f%%)\n", code, counts[code], float64(counts[code])/float64(responded)*100)
		}
	}

	if errs := r.ErrorCounts(); len(errs) > 0 {
		names := make([]string, 0, len(errs))
		for name := range errs {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintf(w, "\nError Distribution:\n")
		for _, name := range names {
			fmt.Fprintf(w, "  %s: %d (%.2f%%)\n", name, errs[name], float64(errs[name])/float64(total)*100)
		}
	}

	if s, ok := r.Latency(); ok {
		fmt.Fprintf(w, "\nResponse Time Statistics:\n")
		fmt.Fprintf(w, "  Minimum:             %.3fs\n", s.Min.Seconds())
		fmt.Fprintf(w, "  Maximum:             %.3fs\n", s.Max.Seconds())
		fmt.Fprintf(w, "  Average:             %.3fs\n", s.Mean.Seconds())
		fmt.Fprintf(w, "  Median:              %.3fs\n", s.Median.Seconds())
		fmt.Fprintf(w, "  95th Percentile:     %.3fs\n", s.P95.Seconds())
		if s.StdDev > 0 {
			fmt.Fprintf(w, "  Std Deviation:       %.3fs\n", s.StdDev.Seconds())
		}
	}

	fmt.Fprintf(w, "\nOverall Performance:\n")
	fmt.Fprintf(w, "  Total Test Duration: %.2fs\n", r.Elapsed.Seconds())
	fmt.Fprintf(w, "  Requests per Second: %.2f\n", r.RequestsPerSecond())
	fmt.Fprintf(w, "\nReliability Verdict:\n  %s\n%s\n", r.Verdict(), line)
}
