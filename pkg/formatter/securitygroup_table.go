package formatter

import (
	"fmt"
	"io"

	"github.com/pivotal/ciborg/internal/models"
)

// FormatSecurityGroup writes a security group and its ingress rules
func FormatSecurityGroup(writer io.Writer, group *models.SecurityGroupInfo) {
	fmt.Fprintf(writer, "Security group %s (%s) in %s\n", group.Name, group.GroupID, group.Region)
	if len(group.Rules) == 0 {
		fmt.Fprintln(writer, "No ingress rules.")
		return
	}

	w := newTableWriter(writer)
	fmt.Fprintln(w, "PROTOCOL\tPORTS\tSOURCE")
	for _, rule := range group.Rules {
		ports := fmt.Sprintf("%d", rule.FromPort)
		if rule.ToPort != rule.FromPort {
			ports = fmt.Sprintf("%d-%d", rule.FromPort, rule.ToPort)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", rule.Protocol, ports, orNone(rule.CIDR))
	}
	w.Flush()
}

// FormatKeyPairsTable writes the registered key pairs
func FormatKeyPairsTable(writer io.Writer, keys []models.KeyPairInfo) {
	if len(keys) == 0 {
		fmt.Fprintln(writer, "No key pairs registered.")
		return
	}

	w := newTableWriter(writer)
	fmt.Fprintln(w, "NAME\tKEY PAIR ID\tFINGERPRINT")
	for _, key := range keys {
		fmt.Fprintf(w, "%s\t%s\t%s\n", key.Name, orNone(key.KeyPairID), orNone(key.Fingerprint))
	}
	w.Flush()
}
