package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// affiliateMarkers are query fragments that indicate a URL already carries
// affiliate attribution, so no link generation call is needed.
var affiliateMarkers = []string{
	"aff_",
	"affid",
	"aff_fcid",
	"aff_fsk",
	"aff_short_key",
	"affd",
	"ali_trackid",
	"pdp_npi",
}

func hasAffiliateMarkers(url string) bool {
	for _, m := range affiliateMarkers {
		if strings.Contains(url, m) {
			return true
		}
	}
	return false
}

// taggedURL appends UTM-style tracking parameters to url.
func taggedURL(url, trackingID string) string {
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + "utm_source=telegram&utm_medium=bot&utm_campaign=" + trackingID
}

const shortAliasBase = "https://sjp.li/"

// shortAlias derives a stable content-addressed short link for url.
func shortAlias(url string) string {
	sum := sha256.Sum256([]byte(url))
	return shortAliasBase + hex.EncodeToString(sum[:])[:8]
}

// fallbackAffiliateLink is the local, deterministic link transformation used
// when the link-generation API is unavailable. It never fails.
func fallbackAffiliateLink(url, trackingID string) string {
	return shortAlias(taggedURL(url, trackingID))
}
