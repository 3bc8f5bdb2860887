/*
 * Copyright (c) DNS TAPIR
 */

package main

func main() {
	Execute()
}
