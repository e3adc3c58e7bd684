// SPDX-License-Identifier: MPL-2.0

// groundwork bootstraps a Django REST backend through an idempotent,
// rerun-to-resume provisioning pipeline.
package main

import cmd "groundwork-cli/cmd/groundwork"

func main() {
	cmd.Execute()
}
