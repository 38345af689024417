//go:build mysql

package main

// This file is needed for conditional compilation. It's used when
// the build tag 'mysql' is defined. Otherwise the adapter is excluded.

import _ "github.com/hubchat/chat/server/db/mysql"
