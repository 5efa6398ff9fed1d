// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// miniapp-launch-params is the developer tool for launch parameters
// and tenant credentials.
//
//	miniapp-launch-params sign --app-id 51234567 --user-id 42 --secret-file app.secret
//	miniapp-launch-params verify --credentials-file creds.txt 'vk_app_id=...&sign=...'
//	miniapp-launch-params keygen > identity.txt
//	miniapp-launch-params seal --recipient age1... --credentials-file creds.txt > creds.sealed
//
// sign prints the query string a VK host would pass to the mini-app,
// signed with the app's secret. Without --secret-file the secret is read
// from the terminal with echo disabled. keygen and seal produce the
// identity_file and sealed_credentials_file the server config refers
// to.
package main
