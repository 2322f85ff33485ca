package formatter

import (
	"fmt"
	"io"
	"sort"

	"github.com/pivotal/ciborg/pkg/utils"
)

// FormatRegionsTable writes the regions ciborg has an image for. The current
// region is marked with an asterisk.
func FormatRegionsTable(writer io.Writer, images map[string]string, current string) {
	regions := make([]string, 0, len(images))
	for region := range images {
		regions = append(regions, region)
	}
	sort.Strings(regions)

	w := newTableWriter(writer)
	fmt.Fprintln(w, "\tREGION\tLOCATION\tIMAGE")
	for _, region := range regions {
		marker := ""
		if region == current {
			marker = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", marker, region, utils.GetRegionDescriptiveName(region), images[region])
	}
	w.Flush()
}
