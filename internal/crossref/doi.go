package crossref

import "strings"

// DOIResolverURL is the base of public DOI links.
const DOIResolverURL = "https://doi.org/"

// BareDOI strips resolver URL and "doi:" prefixes, keeping the DOI's case.
func BareDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi.org/"} {
		if len(doi) >= len(prefix) && strings.EqualFold(doi[:len(prefix)], prefix) {
			return doi[len(prefix):]
		}
	}
	if len(doi) >= 4 && strings.EqualFold(doi[:4], "doi:") {
		return strings.TrimSpace(doi[4:])
	}
	return doi
}

// DOIURL returns the public link for a DOI, or "" for an empty DOI.
func DOIURL(doi string) string {
	doi = BareDOI(doi)
	if doi == "" {
		return ""
	}
	return DOIResolverURL + doi
}
