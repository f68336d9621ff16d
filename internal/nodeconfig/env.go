/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package nodeconfig

import "os"

// loadEnvVar sets *s to the named environment variable's value if set;
// otherwise, if *s is still empty, it sets *s to def.
func loadEnvVar(s *string, name, def string) error {
	if v, ok := os.LookupEnv(name); ok {
		*s = v
	} else if *s == "" {
		*s = def
	}
	return nil
}
