//go:build nobedrock

package monitor

// bedrockSupported reports whether Bedrock probing is compiled in.
const bedrockSupported = false

// bedrockUnavailableReason explains probe results in builds that exclude
// Bedrock support.
const bedrockUnavailableReason = "bedrock probing not built in (rebuild without the nobedrock tag)"

func newBedrockProber(host string, port uint16) Prober {
	return unavailableProber{edition: "bedrock", reason: bedrockUnavailableReason}
}
